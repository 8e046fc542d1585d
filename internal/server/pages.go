package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

const (
	pageSuccess  = "success"
	pageFallback = "fallback"
	pageFailed   = "failed"
	pageInvalid  = "invalid"
)

type pageData struct {
	Title   string
	Message string
	Detail  string
}

var pageText = map[string]pageData{
	pageSuccess:  {Title: "Verification Complete", Message: "You have been verified. You can close this tab and return to Discord."},
	pageFallback: {Title: "Authorization Received", Message: "Your authorization was received. Return to Discord and press Complete to check your status."},
	pageFailed:   {Title: "Verification Failed", Message: "Discord did not authorize the request. Start the verification again from Discord."},
	pageInvalid:  {Title: "Invalid Request", Message: "The verification link is incomplete or has already been used."},
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#2b2d31;color:#f2f3f5;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
main{background:#313338;padding:2.5rem;border-radius:12px;max-width:28rem;text-align:center}
h1{color:#9b59b6;margin-top:0}
small{color:#b5bac1}
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Detail}}<small>{{.Detail}}</small>{{end}}
</main>
</body>
</html>
`))

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	text := pageText[page]
	if data.Title == "" {
		data.Title = text.Title
	}
	if data.Message == "" {
		data.Message = text.Message
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Warn("render page failed", zap.String("page", page), zap.Error(err))
	}
}
