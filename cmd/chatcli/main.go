// chatcli is a terminal client for a running searchchat server. Each line
// typed becomes one chat turn; the reply is printed as it streams.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/searchchat/searchchat/internal/sse"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "searchchat server URL")
	chatID := flag.String("chat", "", "existing chat id (default: create a new chat)")
	flag.Parse()

	client := &http.Client{}
	base := strings.TrimRight(*serverURL, "/")

	id := *chatID
	if id == "" {
		created, err := createChat(client, base)
		if err != nil {
			log.Fatal(err)
		}
		id = created
		fmt.Fprintf(os.Stderr, "chat %s\n", id)
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			fmt.Print("> ")
			continue
		}
		if err := sendTurn(client, base, id, message); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}

func createChat(client *http.Client, base string) (string, error) {
	resp, err := client.Post(base+"/api/chats", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create chat: status %d", resp.StatusCode)
	}
	var chat struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", err
	}
	return chat.ID, nil
}

func sendTurn(client *http.Client, base string, chatID string, message string) error {
	body, err := json.Marshal(map[string]string{"chat_id": chatID, "message": message})
	if err != nil {
		return err
	}
	resp, err := client.Post(base+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, err = sse.Consume(resp.Body, func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()
	return err
}
