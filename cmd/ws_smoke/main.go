package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"readearn/internal/reading"
	"readearn/internal/ws"
)

// Smoke test against a running `readearn serve`: logs in, starts a reading
// session and prints the countdown events until the reward is collectable.
func main() {
	_ = godotenv.Load()

	base := flag.String("url", envOr("BFF_URL", "http://127.0.0.1:8080"), "BFF base url")
	slug := flag.String("slug", "", "article slug to read")
	collect := flag.Bool("collect", false, "collect the reward when the countdown completes")
	flag.Parse()

	if *slug == "" {
		log.Fatal("-slug is required")
	}
	username, password := os.Getenv("READEARN_USERNAME"), os.Getenv("READEARN_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("READEARN_USERNAME and READEARN_PASSWORD must be set")
	}

	var login struct {
		SessionID string `json:"session_id"`
	}
	if err := call(*base, "", http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": username, "password": password}, &login); err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Printf("session %s", login.SessionID)

	if err := call(*base, login.SessionID, http.MethodPost, "/api/v1/reading/"+*slug+"/start", nil, nil); err != nil {
		log.Fatalf("start reading: %v", err)
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws?" + url.Values{
		"sid":  {login.SessionID},
		"slug": {*slug},
	}.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ws.Inbound{Type: ws.MsgPing}); err != nil {
		log.Fatalf("ping: %v", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		var env ws.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Fatalf("read: %v", err)
		}
		switch env.Type {
		case ws.MsgReady, ws.MsgPong:
			log.Printf("%s", env.Type)
			continue
		case ws.MsgError:
			log.Fatalf("server error: %s", env.Message)
		}
		if env.Event == nil {
			continue
		}

		snap := env.Event.Snapshot
		log.Printf("%s state=%s remaining=%ds", env.Event.Kind, snap.State, snap.RemainingSeconds)
		if snap.State == reading.StateAlreadyRewarded {
			log.Println("article already rewarded")
			return
		}
		if snap.State == reading.StateCompleted {
			break
		}
	}

	if *collect {
		var out map[string]any
		if err := call(*base, login.SessionID, http.MethodPost, "/api/v1/reading/"+*slug+"/collect", nil, &out); err != nil {
			log.Fatalf("collect: %v", err)
		}
		log.Printf("collected: %v", out["session"])
	}
	log.Println("smoke test finished")
}

func call(base, sid, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, base+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set("X-Session-ID", sid)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %v", method, path, resp.StatusCode, e)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
