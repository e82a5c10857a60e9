package paypal

import (
	"strings"

	"github.com/google/uuid"
)

const (
	customOrganizationKey = "organization_id"
	customUserKey         = "user_id"
	customAccountCredit   = "account_credit:1"
)

// ParseCustom reads the account ids out of the custom field, formatted as
// comma separated key:value pairs, e.g. "organization_id:<uuid>,account_credit:1".
// Unknown keys and values that are not uuids are skipped.
func ParseCustom(custom string) AccountIDs {
	var ids AccountIDs
	if !strings.Contains(custom, ":") {
		return ids
	}

	for _, part := range strings.Split(custom, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case customOrganizationKey:
			ids.OrganizationID = &id
		case customUserKey:
			ids.UserID = &id
		}
	}

	return ids
}

func IsAccountCredit(custom string) bool {
	return strings.Contains(custom, customAccountCredit)
}
