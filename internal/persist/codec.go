package persist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/codefionn/bookshelf/internal/store"
)

// EncodeAccounts renders the users artifact: a JSON array of accounts.
func EncodeAccounts(accounts []store.Account) ([]byte, error) {
	if accounts == nil {
		accounts = []store.Account{}
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode accounts: %w", err)
	}
	return data, nil
}

// DecodeAccounts parses the users artifact. Empty content means no accounts.
func DecodeAccounts(data []byte) ([]store.Account, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var accounts []store.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// EncodeShelves renders the lists artifact: {accountId: {listName: [book...]}}.
func EncodeShelves(shelves store.ShelfMap) ([]byte, error) {
	if shelves == nil {
		shelves = store.ShelfMap{}
	}
	data, err := json.Marshal(shelves)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lists: %w", err)
	}
	return data, nil
}

// DecodeShelves parses the lists artifact. Empty content means no lists.
func DecodeShelves(data []byte) (store.ShelfMap, error) {
	shelves := store.ShelfMap{}
	if len(bytes.TrimSpace(data)) == 0 {
		return shelves, nil
	}
	if err := json.Unmarshal(data, &shelves); err != nil {
		return nil, fmt.Errorf("failed to decode lists: %w", err)
	}
	if shelves == nil {
		shelves = store.ShelfMap{}
	}
	return shelves, nil
}
