package api

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openAPISpec string

// SpecHandler serves the OpenAPI YAML spec. The embedded file contains an
// {oktaIssuer} placeholder that is replaced with the configured issuer so
// clients never need to know the tenant URL up front.
func SpecHandler(oktaIssuer string) echo.HandlerFunc {
	spec := strings.ReplaceAll(openAPISpec, "{oktaIssuer}", oktaIssuer)
	return func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", []byte(spec))
	}
}

// SwaggerHandler serves a Swagger UI page pointing at /openapi.yaml. When a
// client id is given the UI is initialised for the OIDC PKCE flow requesting
// scopes.
func SwaggerHandler(clientID string, scopes []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		scheme := c.Scheme()
		oauth2Redirect := scheme + "://" + r.Host + "/docs/oauth2-redirect.html"

		html := strings.ReplaceAll(swaggerHTML, "${SPEC_URL}", "/openapi.yaml")
		html = strings.ReplaceAll(html, "${OAUTH2_REDIRECT}", oauth2Redirect)
		html = strings.ReplaceAll(html, "${CLIENT_ID}", clientID)
		html = strings.ReplaceAll(html, "${SCOPES}", strings.Join(scopes, " "))
		return c.HTML(http.StatusOK, html)
	}
}

// OAuth2RedirectHandler serves the OAuth2 redirect page used by Swagger UI.
func OAuth2RedirectHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.HTML(http.StatusOK, oauthRedirectHTML)
	}
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>AutoFlow API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
    });
    window.ui = ui;
    if ("${CLIENT_ID}" !== "") {
      ui.initOAuth({
        clientId: "${CLIENT_ID}",
        scopes: "${SCOPES}",
        usePkceWithAuthorizationCodeGrant: true,
      });
    }
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
</script>
</body>
</html>`
