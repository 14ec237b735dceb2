// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and manages client
// connections. It validates that the request uses the GET method, upgrades the
// HTTP connection to WebSocket, creates a new Client instance, and hands it to
// the hub, which starts the client's read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)
	client.hub.Register(client)
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomcast server is running!")
}

// TestPageHandler serves an HTML test page for exercising the room protocol.
// It provides a simple web interface to log in, subscribe to rooms, publish
// messages, and view broadcasts, history replays, and membership updates.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Roomcast Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Roomcast Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <button onclick="login()">Login</button>
        <input type="text" id="room" placeholder="Room">
        <button onclick="subscribe()">Subscribe</button>
        <button onclick="unsubscribe()">Unsubscribe</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." style="width: 300px;">
        <button onclick="publish()">Publish</button>
    </div>

    <div id="messages"></div>

    <script>
        const messagesDiv = document.getElementById('messages');
        const ws = new WebSocket('ws://' + location.host + '/ws');

        function show(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        ws.onopen = () => show('Connected. Log in to begin.');
        ws.onclose = () => show('Connection closed.');
        ws.onmessage = (event) => show(event.data);

        function act(payload) {
            if (ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(payload));
            }
        }

        function login() {
            act({action: 'login', username: document.getElementById('username').value});
        }
        function subscribe() {
            act({action: 'subscribe', rooms: [document.getElementById('room').value]});
        }
        function unsubscribe() {
            act({action: 'unsubscribe', rooms: [document.getElementById('room').value]});
        }
        function publish() {
            act({action: 'publish', room: document.getElementById('room').value,
                 message: document.getElementById('messageInput').value});
            document.getElementById('messageInput').value = '';
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
