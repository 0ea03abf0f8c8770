package server

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat</title>
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
        input[type="text"], select { padding: 5px; margin-right: 10px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="nameInput" placeholder="Username">
        <select id="roomSelect"></select>
        <button id="joinButton" onclick="toggleConnection()">Join</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let joined = { user: '', room: '' };
        const messagesDiv = document.getElementById('messages');
        const nameInput = document.getElementById('nameInput');
        const roomSelect = document.getElementById('roomSelect');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const joinButton = document.getElementById('joinButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(inRoom) {
            statusDiv.textContent = inRoom ? 'In ' + joined.room + ' as ' + joined.user : 'Disconnected';
            statusDiv.className = 'status ' + (inRoom ? 'connected' : 'disconnected');
            messageInput.disabled = !inRoom;
            sendButton.disabled = !inRoom;
            joinButton.textContent = inRoom ? 'Leave' : 'Join';
        }

        async function loadRooms() {
            const resp = await fetch('/api/rooms');
            const body = await resp.json();
            roomSelect.innerHTML = '';
            for (const r of body.rooms) {
                const opt = document.createElement('option');
                opt.value = r.room_id;
                opt.textContent = r.room_id + ' (' + r.participant_count + ')';
                roomSelect.appendChild(opt);
            }
        }

        function handle(msg) {
            if (msg.join_response) {
                addLine(msg.join_response.message, msg.join_response.success ? 'black' : 'red');
                updateStatus(msg.join_response.success);
            } else if (msg.broadcast) {
                const t = new Date(msg.broadcast.timestamp * 1000).toLocaleTimeString();
                addLine('[' + t + '] ' + msg.broadcast.sender_name + ': ' + msg.broadcast.text,
                    msg.broadcast.sender_name === joined.user ? 'blue' : 'green');
            } else if (msg.user_joined) {
                addLine(msg.user_joined.user_name + ' joined (' + msg.user_joined.current_count + ' online)');
            } else if (msg.user_left) {
                addLine(msg.user_left.user_name + ' left (' + msg.user_left.current_count + ' online)');
            }
        }

        function join() {
            joined = { user: nameInput.value.trim(), room: roomSelect.value };
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                ws.send(JSON.stringify({ join_request: { user_name: joined.user, room_id: joined.room } }));
            };
            ws.onmessage = function(event) { handle(JSON.parse(event.data)); };
            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
                loadRooms();
            };
        }

        function leave() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ leave_request: { user_name: joined.user, room_id: joined.room } }));
            }
        }

        function toggleConnection() {
            if (ws) { leave(); } else { join(); }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ chat_message: { text: text } }));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
        loadRooms();
    </script>
</body>
</html>`
