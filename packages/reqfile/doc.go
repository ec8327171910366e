// Package reqfile loads single-request definitions from YAML files and
// applies them to an http.Request.
//
// A request file looks like:
//
//	method: POST
//	url: ${BASE_URL}/login
//	headers:
//	  Accept: application/json
//	form:
//	  user: bob
//	  avatar: "@avatar.png"
//	redirects: 5
//	cookies_enabled: true
//	captures:
//	  token: body data.token
//
// An oauth2 auth block names a token endpoint instead of a token:
//
//	auth:
//	  type: oauth2
//	  token_url: https://auth.example.com/token
//	  client_id: ${CLIENT_ID}
//	  client_secret: ${CLIENT_SECRET}
//	  scopes: [read]
//
// ${VAR} references in string values are expanded when the file is loaded.
package reqfile
