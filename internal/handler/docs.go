package handler

import (
	"log/slog"
	"net/http"
)

// ServeSpec serves the raw OpenAPI document.
func ServeSpec(spec []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		if _, err := w.Write(spec); err != nil {
			slog.Warn("failed to write openapi spec", "error", err)
		}
	}
}

// ServeDocs serves a Swagger UI page that loads the document from specURL.
func ServeDocs(specURL string) http.HandlerFunc {
	page := []byte(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Banking Service API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "` + specURL + `", dom_id: "#swagger-ui" });
  </script>
</body>
</html>`)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			slog.Warn("failed to write docs page", "error", err)
		}
	}
}
