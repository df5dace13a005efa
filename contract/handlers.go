package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreyvit/kvdoc"
)

const (
	EntityDocType = "entity"
	EntryDocType  = "entry"

	EntityIDField = "entityRegistrationNumber"
	EntryIDField  = "entryId"
)

const (
	OpReadEntity   = "readEntity"
	OpReadEntry    = "readEntry"
	OpListEntities = "listEntities"
	OpQueryRecords = "queryRecords"
	OpGetHistory   = "getHistory"
	OpCreateEntity = "createEntity"
	OpUpdateEntity = "updateEntity"
	OpDeleteEntity = "deleteEntity"
	OpCreateEntry  = "createEntry"
)

const idSchema = `{"type": "string", "pattern": "^[0-9A-Za-y][0-9A-Za-z]*$"}`

var (
	entityKeySchema = `{
		"type": "object",
		"required": ["entityRegistrationNumber"],
		"properties": {"entityRegistrationNumber": ` + idSchema + `}
	}`
	entryKeySchema = `{
		"type": "object",
		"required": ["entryId"],
		"properties": {"entryId": ` + idSchema + `}
	}`
	createEntitySchema = `{
		"type": "object",
		"required": ["entityRegistrationNumber", "entityName"],
		"properties": {
			"entityRegistrationNumber": ` + idSchema + `,
			"entityName": {"type": "string", "minLength": 1},
			"docType": {"const": "entity"}
		}
	}`
	updateEntitySchema = `{
		"type": "object",
		"required": ["entityRegistrationNumber"],
		"properties": {
			"entityRegistrationNumber": ` + idSchema + `,
			"entityName": {"type": "string", "minLength": 1},
			"docType": {"const": "entity"}
		}
	}`
	createEntrySchema = `{
		"type": "object",
		"required": ["entryId", "entityRegistrationNumber"],
		"properties": {
			"entryId": ` + idSchema + `,
			"entityRegistrationNumber": ` + idSchema + `,
			"description": {"type": "string"},
			"amount": {"type": "number"},
			"docType": {"const": "entry"}
		}
	}`
	querySchema = `{
		"type": "object",
		"properties": {"selector": {"type": "object"}}
	}`
	historySchema = `{
		"type": "object",
		"anyOf": [
			{"required": ["key"]},
			{"required": ["docType", "id"]}
		],
		"properties": {
			"key": {"type": "string", "minLength": 1},
			"docType": {"type": "string", "minLength": 1},
			"id": ` + idSchema + `
		}
	}`
	emptySchema = `{"type": "object"}`
)

// NewDefaultRegistry returns a registry holding every operation of the
// entity ledger.
func NewDefaultRegistry(db *kvdoc.DB, opt Options) *Registry {
	r := NewRegistry(db, opt)
	r.MustRegister(DefaultOperations()...)
	return r
}

func DefaultOperations() []Operation {
	return []Operation{
		{Name: OpReadEntity, Schema: entityKeySchema, Handler: HandlerFunc(readEntity)},
		{Name: OpReadEntry, Schema: entryKeySchema, Handler: HandlerFunc(readEntry)},
		{Name: OpListEntities, Schema: emptySchema, Handler: HandlerFunc(listEntities)},
		{Name: OpQueryRecords, Schema: querySchema, Handler: HandlerFunc(queryRecords)},
		{Name: OpGetHistory, Schema: historySchema, Handler: HandlerFunc(getHistory)},
		{Name: OpCreateEntity, Writable: true, Schema: createEntitySchema, Handler: HandlerFunc(createEntity)},
		{Name: OpUpdateEntity, Writable: true, Schema: updateEntitySchema, Handler: HandlerFunc(updateEntity)},
		{Name: OpDeleteEntity, Writable: true, Schema: entityKeySchema, Handler: HandlerFunc(deleteEntity)},
		{Name: OpCreateEntry, Writable: true, Schema: createEntrySchema, Handler: HandlerFunc(createEntry)},
	}
}

func EntityKey(regNum string) string { return kvdoc.MakeKey(EntityDocType, regNum) }
func EntryKey(entryID string) string { return kvdoc.MakeKey(EntryDocType, entryID) }

func readEntity(ctx context.Context, inv *Invocation) ([]byte, error) {
	var args struct {
		RegNum string `json:"entityRegistrationNumber"`
	}
	if err := inv.DecodeArgs(&args); err != nil {
		return nil, err
	}
	return inv.Tx.Lookup(EntityKey(args.RegNum))
}

func readEntry(ctx context.Context, inv *Invocation) ([]byte, error) {
	var args struct {
		EntryID string `json:"entryId"`
	}
	if err := inv.DecodeArgs(&args); err != nil {
		return nil, err
	}
	return inv.Tx.Lookup(EntryKey(args.EntryID))
}

func listEntities(ctx context.Context, inv *Invocation) ([]byte, error) {
	return queryAndMarshal(inv, kvdoc.NewSelector(EntityDocType))
}

func queryRecords(ctx context.Context, inv *Invocation) ([]byte, error) {
	sel, err := kvdoc.ParseQuery(inv.Args)
	if err != nil {
		return nil, err
	}
	return queryAndMarshal(inv, sel)
}

func queryAndMarshal(inv *Invocation, sel kvdoc.Selector) ([]byte, error) {
	entries, err := inv.Tx.Query(sel)
	if err != nil {
		return nil, err
	}
	inv.Logger.Debug("query done", zap.Strings("predicates", sel.Predicates()), zap.Int("matched", len(entries)))
	return kvdoc.MarshalQueryResults(entries)
}

func getHistory(ctx context.Context, inv *Invocation) ([]byte, error) {
	var args struct {
		Key     string `json:"key"`
		DocType string `json:"docType"`
		ID      string `json:"id"`
	}
	if err := inv.DecodeArgs(&args); err != nil {
		return nil, err
	}
	key := args.Key
	if key == "" {
		if err := kvdoc.ValidateDocType(args.DocType); err != nil {
			return nil, &ValidationError{Op: inv.Op, Err: err}
		}
		if err := kvdoc.ValidateID(args.ID); err != nil {
			return nil, &ValidationError{Op: inv.Op, Err: err}
		}
		key = kvdoc.MakeKey(args.DocType, args.ID)
	}
	return inv.Tx.HistoryJSON(key)
}

func createEntity(ctx context.Context, inv *Invocation) ([]byte, error) {
	rec, err := decodeRecordArgs(inv)
	if err != nil {
		return nil, err
	}
	regNum := rec[EntityIDField].(string)
	if err := kvdoc.ValidateID(regNum); err != nil {
		return nil, &ValidationError{Op: inv.Op, Err: err}
	}
	rec[kvdoc.DocTypeField] = EntityDocType
	return putRecord(inv, EntityKey(regNum), rec, true)
}

// updateEntity merges the given fields into an existing entity.
func updateEntity(ctx context.Context, inv *Invocation) ([]byte, error) {
	fields, err := decodeRecordArgs(inv)
	if err != nil {
		return nil, err
	}
	key := EntityKey(fields[EntityIDField].(string))
	rec, err := inv.Tx.LookupRecord(key)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		rec[k] = v
	}
	rec[kvdoc.DocTypeField] = EntityDocType
	return putRecord(inv, key, rec, false)
}

func deleteEntity(ctx context.Context, inv *Invocation) ([]byte, error) {
	var args struct {
		RegNum string `json:"entityRegistrationNumber"`
	}
	if err := inv.DecodeArgs(&args); err != nil {
		return nil, err
	}
	if err := inv.Tx.Delete(EntityKey(args.RegNum)); err != nil {
		return nil, err
	}
	return nil, nil
}

// createEntry stores an entry under an existing entity. The parent check
// happens before anything is written.
func createEntry(ctx context.Context, inv *Invocation) ([]byte, error) {
	rec, err := decodeRecordArgs(inv)
	if err != nil {
		return nil, err
	}
	entryID := rec[EntryIDField].(string)
	if err := kvdoc.ValidateID(entryID); err != nil {
		return nil, &ValidationError{Op: inv.Op, Err: err}
	}
	key := EntryKey(entryID)
	parentKey := EntityKey(rec[EntityIDField].(string))
	if _, err := inv.Tx.Lookup(parentKey); err != nil {
		if errors.Is(err, kvdoc.ErrNotFound) {
			return nil, &kvdoc.ParentNotFoundError{ParentKey: parentKey, ChildKey: key}
		}
		return nil, err
	}
	rec[kvdoc.DocTypeField] = EntryDocType
	return putRecord(inv, key, rec, true)
}

func decodeRecordArgs(inv *Invocation) (map[string]any, error) {
	var rec map[string]any
	if err := inv.DecodeArgs(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &ValidationError{Op: inv.Op, Err: fmt.Errorf("arguments must be an object")}
	}
	return rec, nil
}

func putRecord(inv *Invocation, key string, rec map[string]any, create bool) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if create {
		err = inv.Tx.Create(key, raw)
	} else {
		err = inv.Tx.Put(key, raw)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
