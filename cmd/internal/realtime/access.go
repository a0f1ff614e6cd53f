package realtime

import (
	"errors"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

var (
	errUnknownTable = errors.New("unknown table")
	errForbidden    = errors.New("forbidden")
)

// tableAccess maps each exposed table to whether it needs an admin session.
// Chat messages are public like the site's chat widget; leads carry contact data.
var tableAccess = map[string]bool{
	v1.TableMessages: false,
	v1.TableLeads:    true,
}

// Tables returns every table the gateway serves.
func Tables() []string {
	return []string{v1.TableMessages, v1.TableLeads}
}

func authorizeTable(table string, admin bool) error {
	needsAdmin, ok := tableAccess[table]
	if !ok {
		return errUnknownTable
	}
	if needsAdmin && !admin {
		return errForbidden
	}
	return nil
}
