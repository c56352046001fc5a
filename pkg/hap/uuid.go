package hap

import (
	"strings"

	"github.com/google/uuid"
)

// accessoryNamespace scopes accessory UUIDs derived from plugin ids.
var accessoryNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("homebridge-lib.accessory"))

// AccessoryUUID derives the stable host UUID for an accessory id.
func AccessoryUUID(id string) string {
	return strings.ToUpper(uuid.NewSHA1(accessoryNamespace, []byte(id)).String())
}

// ServiceKey returns the key of a service: its type UUID, suffixed with
// ".subtype" when a subtype is set.
func ServiceKey(typeUUID, subtype string) string {
	if subtype == "" {
		return strings.ToUpper(typeUUID)
	}
	return strings.ToUpper(typeUUID) + "." + subtype
}

// LooksLikeUUID returns true if key starts with a 36-character UUID,
// optionally followed by a ".subtype" suffix.
func LooksLikeUUID(key string) bool {
	prefix, _, _ := strings.Cut(key, ".")
	if len(prefix) != 36 {
		return false
	}
	_, err := uuid.Parse(prefix)
	return err == nil
}
