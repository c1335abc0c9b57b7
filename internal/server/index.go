package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>robocapture</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
</head>
<body>
<main class="container">
    <h1>robocapture</h1>
    <form id="robot" class="grid">
        <input name="address" placeholder="IP">
        <input name="port" placeholder="PORT" inputmode="numeric">
        <button type="button" onclick="send('/connect', new FormData(document.getElementById('robot')))">Connect</button>
    </form>
    <div class="grid">
        <button onclick="send('/camera')">Switch camera</button>
        <span id="camera">Top camera</span>
        <button onclick="send('/audio')">Switch audio</button>
        <span id="audio">.wav</span>
    </div>
    <form id="options" class="grid">
        <input name="label" placeholder="Label">
        <label><input type="checkbox" name="sonar_logging" value="true"> Sonar</label>
        <label><input type="checkbox" name="touch_logging" value="true"> Touch</label>
        <button type="button" onclick="saveOptions()">Apply</button>
    </form>
    <div class="grid">
        <button onclick="send('/start')">Start</button>
        <button class="secondary" onclick="send('/stop')">Stop</button>
        <button class="contrast" onclick="send('/close')">Close</button>
    </div>
    <h2 id="status">Not connected</h2>
    <small id="error"></small>
</main>
<script>
async function send(path, body) {
    const res = await fetch(path, {method: 'POST', body: body});
    const data = await res.json();
    document.getElementById('error').textContent = data.success ? '' : data.error;
    refresh();
}
function saveOptions() {
    const form = new FormData(document.getElementById('options'));
    form.set('sonar_logging', form.has('sonar_logging') ? 'true' : 'false');
    form.set('touch_logging', form.has('touch_logging') ? 'true' : 'false');
    send('/options', form);
}
async function refresh() {
    const res = await fetch('/status');
    const s = await res.json();
    document.getElementById('status').textContent = s.status + (s.elapsed ? ' ' + s.elapsed : '');
    document.getElementById('camera').textContent = s.camera;
    document.getElementById('audio').textContent = s.audio_format;
}
setInterval(refresh, 1000);
refresh();
</script>
</body>
</html>`
