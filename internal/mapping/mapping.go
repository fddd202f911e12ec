// Package mapping turns NinjaOne device records into Freshservice asset payloads.
// All field translation lives here.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/assetsync/internal/types"
)

const description = "Synced from NinjaOne"

// ErrNoIdentifier is returned for records with neither a hostname nor a name.
var ErrNoIdentifier = errors.New("asset has no hostname or name")

// Options carries the settings the mapping depends on.
type Options struct {
	DefaultLocation string
	SourceTag       string
}

// MapNinjaAsset maps a single NinjaOne record to a Freshservice payload.
func MapNinjaAsset(asset types.NinjaAsset, opts Options) (types.FreshAsset, error) {
	name := firstString(asset, "hostname", "name")
	if name == "" {
		return types.FreshAsset{}, ErrNoIdentifier
	}
	out := types.FreshAsset{
		Name:         name,
		SerialNumber: types.StringPtr(firstString(asset, "serial_number", "serial")),
		Description:  description,
		Location:     types.StringPtr(opts.DefaultLocation),
		CustomFields: map[string]any{},
	}
	if opts.SourceTag != "" {
		out.Tags = append(out.Tags, opts.SourceTag)
	}
	return out, nil
}

// firstString returns the first key whose value renders to a non-empty string.
func firstString(asset types.NinjaAsset, keys ...string) string {
	for _, k := range keys {
		v, ok := asset[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case bool, map[string]any, []any:
			continue
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
