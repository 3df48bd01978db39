package router

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/sqlfabric/fabric/pkg/apperrors"
)

// checkParameters runs every string-valued caller parameter through
// libinjection. Non-string values cannot carry an injection pattern and are
// skipped. The first hit rejects the whole request; the statement never
// reaches an engine with a tainted parameter.
func checkParameters(params map[string]any) error {
	for name, value := range params {
		str, ok := value.(string)
		if !ok {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(str); isSQLi {
			return apperrors.Validation("parameter %q rejected by injection check (fingerprint %s)", name, string(fingerprint))
		}
	}
	return nil
}
