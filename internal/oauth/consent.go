package oauth

import (
	"html/template"
	"io"
	"strings"
)

// ConsentPage is the data rendered into the authorization form.
type ConsentPage struct {
	ClientName string
	Scopes     []string
	Error      string
	Request    AuthorizeRequest
}

const consentHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>LaunchPal Authorization</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; background: #F9FAFB; margin: 0; }
    .card { max-width: 420px; margin: 64px auto; background: #fff; border-radius: 12px; padding: 32px; box-shadow: 0 4px 16px rgba(0,0,0,.08); }
    h1 { font-size: 22px; margin: 0 0 12px; }
    label { display: block; margin: 12px 0 4px; font-size: 14px; }
    input[type=email], input[type=password] { width: 100%; padding: 10px; border: 1px solid #D1D5DB; border-radius: 6px; box-sizing: border-box; }
    .consent { display: flex; gap: 8px; align-items: center; margin: 16px 0; }
    .consent label { margin: 0; }
    .error { color: #B91C1C; font-size: 14px; }
    .scopes { font-size: 14px; color: #374151; }
    button { width: 100%; padding: 12px; border: 0; border-radius: 6px; background: #4F46E5; color: #fff; font-size: 15px; cursor: pointer; }
    button:hover { background: #4338CA; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Authorize LaunchPal</h1>
    <p>The application <strong>{{.ClientName}}</strong> is requesting access to your LaunchPal account.</p>
    {{if .Scopes}}<p class="scopes">Requested access: {{join .Scopes}}</p>{{end}}
    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    <form method="post" action="/oauth/authorize">
      <input type="hidden" name="client_id" value="{{.Request.ClientID}}">
      <input type="hidden" name="redirect_uri" value="{{.Request.RedirectURI}}">
      <input type="hidden" name="response_type" value="{{.Request.ResponseType}}">
      <input type="hidden" name="state" value="{{.Request.State}}">
      <input type="hidden" name="scope" value="{{.Request.Scope}}">
      <input type="hidden" name="code_challenge" value="{{.Request.CodeChallenge}}">
      <input type="hidden" name="code_challenge_method" value="{{.Request.CodeChallengeMethod}}">
      <label for="email">Email</label>
      <input type="email" id="email" name="email" required>
      <label for="password">Password</label>
      <input type="password" id="password" name="password" required>
      <div class="consent">
        <input type="checkbox" id="consent" name="consent" value="true">
        <label for="consent">Allow access to your LaunchPal account</label>
      </div>
      <button type="submit">Authorize</button>
    </form>
  </div>
</body>
</html>
`

var consentTemplate = template.Must(template.New("consent").Funcs(template.FuncMap{
	"join": func(s []string) string { return strings.Join(s, ", ") },
}).Parse(consentHTML))

// RenderConsent writes the authorization form.
func RenderConsent(w io.Writer, page ConsentPage) error {
	return consentTemplate.Execute(w, page)
}
