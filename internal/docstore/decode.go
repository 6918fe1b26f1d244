package docstore

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// decodeMap decodes generic document data into a struct tagged with
// `firestore` tags. Timestamps may arrive as time.Time or RFC 3339 strings.
func decodeMap(data map[string]interface{}, dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "firestore",
		Result:     dst,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("docstore: decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}
