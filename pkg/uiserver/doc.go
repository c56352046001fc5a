// Package uiserver serves the platform's accessory delegates over HTTP for
// a configuration UI. Its port is reported by every accessory delegate as
// the uiPort property.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/accessories
//	GET  /api/accessories/{id}
//	PUT  /api/accessories/{id}/values/{key}
//	PUT  /api/accessories/{id}/services/{service}/values/{key}
package uiserver
