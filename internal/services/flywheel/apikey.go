package flywheel

import (
	"fmt"
	"strings"

	"synthgear/internal/services"
)

// BaseURLFromAPIKey derives the API root from a "host[:port]:secret" key.
func BaseURLFromAPIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	parts := strings.Split(key, ":")
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[len(parts)-1]) == "" {
		return "", services.Wrap(services.ErrConfiguration, "platform", "api key", "expected host[:port]:secret", nil)
	}
	host := parts[0]
	switch len(parts) {
	case 2:
	case 3:
		host = fmt.Sprintf("%s:%s", parts[0], parts[1])
	default:
		return "", services.Wrap(services.ErrConfiguration, "platform", "api key", "too many ':' separated parts", nil)
	}
	return "https://" + host + "/api", nil
}
