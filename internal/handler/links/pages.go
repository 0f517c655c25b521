package links

import (
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

var pages = template.Must(template.New("links").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1"><meta name="robots" content="noindex"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;max-width:420px;margin:2rem auto;padding:1rem;text-align:center;">{{end}}

{{define "confirm"}}{{template "head" .}}
<p>{{.Question}}</p>
{{range .Details}}<p><small>{{.}}</small></p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="token" value="{{.Token}}">
{{if .AskPayoutHash}}<p><input type="text" name="payout_tx_hash" maxlength="128" placeholder="payout tx hash (optional)" style="width:100%;"></p>{{end}}
<button type="submit" style="padding:0.5rem 1.5rem;font-size:1rem;">{{.Confirm}}</button>
</form>
</body></html>{{end}}

{{define "result"}}{{template "head" .}}
<p>{{.Message}}</p>
</body></html>{{end}}
`))

type confirmPage struct {
	Title         string
	Question      string
	Details       []string
	Action        string
	Token         string
	Confirm       string
	AskPayoutHash bool
}

type resultPage struct {
	Title   string
	Message string
}

func renderPage(c *gin.Context, status int, name string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Render(status, render.HTML{Template: pages, Name: name, Data: data})
}

func renderResult(c *gin.Context, status int, title, message string) {
	renderPage(c, status, "result", resultPage{Title: title, Message: message})
}
