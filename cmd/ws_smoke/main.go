package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"ton_mining/internal/service"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Smoke test against a running server: starts a mining session for -id over
// HTTP and prints the countdown frames pushed on /api/v1/ws/session.
func main() {
	_ = godotenv.Load()

	userID := flag.Int64("id", 1234567890, "telegram id of an existing user")
	frames := flag.Int("frames", 5, "frames to read before exiting")
	flag.Parse()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	service.InitJWT(jwtSecret)
	token, err := service.GenerateJWT(*userID)
	if err != nil {
		log.Fatalf("gen token: %v", err)
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "127.0.0.1:" + port

	req, _ := http.NewRequest(http.MethodPost, "http://"+base+"/api/v1/mining/start", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("start mining: %v", err)
	}
	resp.Body.Close()
	log.Printf("start mining: %s", resp.Status)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/v1/ws/session?token=%s", base, token), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < *frames; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		var obj map[string]any
		_ = json.Unmarshal(msg, &obj)
		log.Printf("got %v: %s", obj["type"], string(msg))
	}

	log.Println("smoke test finished")
}
