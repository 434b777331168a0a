package server

// Minimal built-in pages. The %PORTAL_HEADING% and %CUSTOM_DOMAIN%
// placeholders are substituted at request time.

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>%PORTAL_HEADING%</title></head>
<body>
<h1>%PORTAL_HEADING%</h1>
<p>Device portal. Reachable at http://%CUSTOM_DOMAIN%</p>
<ul>
<li><a href="/wifimanage">Wi-Fi Settings</a></li>
<li><a href="/update">Firmware Update</a></li>
<li><a href="/info">Device Info</a></li>
<li><a href="/debug">Debug Console</a></li>
<li><a href="/erase">Erase Settings</a></li>
<li><a href="/restart">Restart Device</a></li>
%CUSTOM_PAGE_LINK%
</ul>
</body>
</html>`

const wifiManageHTML = `<!DOCTYPE html>
<html>
<head><title>Wi-Fi Settings</title></head>
<body>
<h1>Wi-Fi Settings</h1>
<p>Scanning for networks... results arrive on the live channel.</p>
<form method="POST" action="/save-wifi">
<label>SSID <input name="ssid"></label>
<label>Password <input name="password" type="password"></label>
<button type="submit">Save</button>
</form>
</body>
</html>`

const updateHTML = `<!DOCTYPE html>
<html>
<head><title>Firmware Update</title></head>
<body>
<h1>Firmware Update</h1>
<form method="POST" action="/update" enctype="multipart/form-data">
<input type="file" name="firmware">
<button type="submit">Upload</button>
</form>
</body>
</html>`

const eraseHTML = `<!DOCTYPE html>
<html>
<head><title>Erase Settings</title></head>
<body>
<h1>Erase Settings</h1>
<p>This clears the stored network credentials.</p>
<form method="POST" action="/erase"><button type="submit">Erase</button></form>
</body>
</html>`

const debugHTML = `<!DOCTYPE html>
<html>
<head><title>%PORTAL_HEADING% - Debug</title></head>
<body>
<h1>Debug Console</h1>
<pre id="log">%DEBUG_HISTORY%</pre>
<script>
var ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = function(e) {
  document.getElementById("log").innerHTML += e.data + "<br/>";
};
</script>
</body>
</html>`

const restartHTML = `<!DOCTYPE html>
<html>
<head><title>Restart Device</title></head>
<body>
<h1>Restart Device</h1>
<form method="POST" action="/restart"><button type="submit">Restart</button></form>
</body>
</html>`

const infoHTML = `<!DOCTYPE html>
<html>
<head><title>Device Info</title></head>
<body>
<h1>Device Info</h1>
<table>
%DEVICE_INFO%
</table>
</body>
</html>`
