package server

import "github.com/morezero/procurement-assistant/pkg/cards"

// homePageTemplate is the HTML for the assistant home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Procurement Assistant</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Procurement Assistant</h1>
  <p class="meta">Workers, routing and conversation sessions.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Session store: {{if .Health.Checks.Store}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Uptime: {{.Health.Uptime}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Statistics</h2>
    <p>Registered workers: <span class="stat">{{.Health.Checks.Handlers}}</span></p>
    <p>Active sessions: <span class="stat">{{.Health.Checks.Sessions}}</span></p>
    <p>Event watchers: <span class="stat">{{.Health.Checks.Watchers}}</span></p>
  </section>

  <section>
    <h2>Agents</h2>
    {{if not .Agents}}
    <p>No agent cards loaded.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Agent</th><th>Name</th><th>Version</th><th>Capabilities</th><th>Worker</th></tr>
      </thead>
      <tbody>
        {{range .Agents}}
        <tr>
          <td><a href="/agent/{{.AgentID}}">{{.AgentID}}</a></td>
          <td>{{.Name}}</td>
          <td>{{.Version}}</td>
          <td>{{range .Capabilities}}{{.}} {{end}}</td>
          <td>{{if .HasHandler}}registered{{else}}<span class="error">missing</span>{{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// agentDetailPageTemplate is the HTML for one agent card.
const agentDetailPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.AgentID}} – Procurement Assistant</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; width: 140px; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 0.5rem; }
    section { margin-bottom: 2rem; }
    pre { background: #f5f5f5; padding: 0.75rem; overflow-x: auto; font-size: 0.85rem; margin: 0.25rem 0; border: 1px solid #eee; }
    .back { margin-bottom: 1rem; }
    .actions { margin: 1rem 0; }
    .btn { display: inline-block; padding: 0.5rem 1rem; background: #0066cc; color: #fff; text-decoration: none; border-radius: 4px; }
    .btn:hover { background: #0052a3; }
  </style>
</head>
<body>
  <p class="back"><a href="/">← Back to agents</a></p>
  <h1>{{.AgentID}}</h1>
  {{if .Description}}<p class="meta">{{.Description}}</p>{{end}}
  <p class="actions"><a href="/agent/{{.AgentID}}/docs" class="btn">View API (Swagger)</a></p>

  <section>
    <h2>Details</h2>
    <table>
      <tr><th>Agent</th><td>{{.AgentID}}</td></tr>
      <tr><th>Name</th><td>{{.Name}}</td></tr>
      <tr><th>Version</th><td>{{.Version}}</td></tr>
      <tr><th>Worker</th><td>{{if .HasHandler}}registered{{else}}missing{{end}}</td></tr>
    </table>
  </section>

  <section>
    <h2>Capabilities</h2>
    {{if not .Capabilities}}
    <p>No capabilities declared.</p>
    {{else}}
    {{range .Capabilities}}
    <h3>{{.Name}}</h3>
    {{if .Description}}<p>{{.Description}}</p>{{end}}
    {{if or .InputSchema .OutputSchema}}
    <details>
      <summary>Schemas</summary>
      {{if .InputSchema}}<p><strong>Input:</strong></p><pre>{{json .InputSchema}}</pre>{{end}}
      {{if .OutputSchema}}<p><strong>Output:</strong></p><pre>{{json .OutputSchema}}</pre>{{end}}
    </details>
    {{end}}
    {{end}}
    {{end}}
  </section>
</body>
</html>
`

// swaggerUIPage embeds Swagger UI from CDN and loads the agent's OpenAPI document.
const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>API – {{.AgentID}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "{{.SpecURL}}",
        dom_id: "#swagger-ui",
        presets: [
          SwaggerUIBundle.presets.apis,
          SwaggerUIBundle.SwaggerUIStandalonePreset
        ]
      });
    };
  </script>
</body>
</html>
`

type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]any `json:"schema,omitempty"`
}

// buildOpenAPISpec describes a card as an OpenAPI 3.0 document, one POST path per
// capability. Capabilities without their own schema fall back to the card-level schema.
func buildOpenAPISpec(card *cards.AgentCard) *openAPI3Spec {
	paths := make(map[string]openAPI3PathItem, len(card.Capabilities))
	for _, name := range card.Capabilities {
		d := card.Detail(name)
		input := firstSchema(d.InputSchema, card.InputSchema)
		output := firstSchema(d.OutputSchema, card.OutputSchema)
		paths["/"+name] = openAPI3PathItem{
			Post: &openAPI3Operation{
				Summary:     name,
				Description: d.Description,
				OperationID: name,
				RequestBody: &openAPI3RequestBody{
					Content: map[string]openAPI3MediaType{"application/json": {Schema: input}},
				},
				Responses: map[string]openAPI3Response{
					"200": {
						Description: "Success",
						Content:     map[string]openAPI3MediaType{"application/json": {Schema: output}},
					},
				},
			},
		}
	}
	desc := card.Description
	if desc == "" {
		desc = "Agent " + card.AgentID
	}
	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info:    openAPI3Info{Title: card.AgentID, Description: desc, Version: card.Version},
		Paths:   paths,
	}
}

func firstSchema(schemas ...map[string]any) map[string]any {
	for _, s := range schemas {
		if s != nil {
			return s
		}
	}
	return map[string]any{"type": "object"}
}
