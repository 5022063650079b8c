package status

import (
	"html/template"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/infra/logger"
)

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <meta http-equiv="refresh" content="10">
  <title>Vitality Bot Dashboard</title>
  <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-900 text-white font-sans">
  <div class="max-w-3xl mx-auto p-4">
    <h1 class="text-3xl text-green-400 font-bold mb-6 text-center">Vitality Bot Status</h1>
    <ul class="mb-6 text-gray-300">
      <li><strong>Bot:</strong> {{if .Tag}}{{.Tag}}{{else}}Starting...{{end}}</li>
      <li><strong>ID:</strong> {{if .ID}}{{.ID}}{{else}}Loading...{{end}}</li>
      <li><strong>Status:</strong> ✅ Online</li>
      <li><strong>Servers:</strong> {{.Guilds}}</li>
      <li><strong>Uptime:</strong> {{.UptimeMinutes}} minutes</li>
    </ul>
    <h2 class="text-xl text-green-300 mb-2">Now Playing:</h2>
    {{range .Players}}
    <div class="bg-gray-800 p-4 rounded-lg shadow-md mb-4">
      <h3 class="text-xl font-semibold text-green-400">{{or .GuildName "Unknown Server"}}</h3>
      <p class="text-sm text-gray-300">🎶 Now Playing: <strong>{{if .NowPlaying}}{{.NowPlaying.Title}}{{else}}None{{end}}</strong></p>
      <p class="text-sm text-gray-300">🔊 Voice Channel: <strong>{{or .VoiceChannel "Unknown"}}</strong></p>
      <p class="text-sm text-gray-300">📜 Queue: <strong>{{.QueueLength}}</strong> · 🔉 {{.Volume}}% · 🔁 {{.Loop}}</p>
    </div>
    {{else}}
    <p class="text-gray-300">No active players.</p>
    {{end}}
    <h2 class="text-xl text-green-300 mt-8 mb-2">Error Logs</h2>
    <pre class="bg-gray-800 p-4 rounded h-64 overflow-y-scroll text-sm">{{or .ErrorLog "No errors logged."}}</pre>
  </div>
</body>
</html>
`))

type dashboardData struct {
	Tag           string
	ID            string
	Guilds        int
	UptimeMinutes int
	Players       []PlayerView
	ErrorLog      string
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	data := dashboardData{
		Tag:     s.directory.BotTag(),
		ID:      s.directory.BotUserID(),
		Guilds:  s.directory.GuildCount(),
		Players: s.players(false),
	}
	if started := s.directory.StartedAt(); !started.IsZero() {
		data.UptimeMinutes = int(time.Since(started).Minutes())
	}
	if s.config.ErrorLog != "" {
		tail, err := logger.Tail(s.config.ErrorLog, errorLogTail)
		if err != nil {
			zlog.Warn().Err(err).Msgf("failed to read error log: path=%s", s.config.ErrorLog)
		}
		data.ErrorLog = tail
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		zlog.Error().Err(err).Msg("failed to render dashboard")
	}
}
