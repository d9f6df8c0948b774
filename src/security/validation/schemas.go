package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Incoming expense and asset payloads arrive as free-form JSON from the
// frontend; validate their shape up front so the services only ever see
// well-formed records.

const expenseSchema = `{
	"type": "object",
	"required": ["date", "item", "amount", "category", "transactionType"],
	"properties": {
		"date": {"type": "string", "pattern": "^[0-9]{4}/[0-9]{2}/[0-9]{2}$"},
		"item": {"type": "string", "minLength": 1},
		"amount": {"type": "integer", "minimum": 0},
		"payment_method": {"type": "string"},
		"category": {"type": "string", "minLength": 1},
		"transactionType": {"type": "string", "enum": ["支出", "收入"]},
		"merchant": {"type": "string"},
		"notes": {"type": "string"},
		"invoice_number": {"type": "string"},
		"member": {"type": "string"}
	}
}`

const assetSchema = `{
	"type": "object",
	"required": ["item", "asset_type", "acquisition_value", "quantity"],
	"properties": {
		"item": {"type": "string", "minLength": 1},
		"asset_type": {"type": "string", "minLength": 1},
		"acquisition_date": {"type": "string", "pattern": "^[0-9]{4}/[0-9]{2}/[0-9]{2}$"},
		"acquisition_value": {"type": "number", "minimum": 0},
		"quantity": {"type": "integer", "minimum": -1},
		"notes": {"type": "string"}
	}
}`

var (
	expenseSchemaLoader = gojsonschema.NewStringLoader(expenseSchema)
	assetSchemaLoader   = gojsonschema.NewStringLoader(assetSchema)
)

// ValidateExpensePayload checks a raw expense submission against the expense
// record schema.
func ValidateExpensePayload(payload []byte) error {
	return validate(expenseSchemaLoader, payload, "expense")
}

// ValidateAssetPayload checks a raw asset submission against the asset
// record schema.
func ValidateAssetPayload(payload []byte) error {
	return validate(assetSchemaLoader, payload, "asset")
}

func validate(schema gojsonschema.JSONLoader, payload []byte, kind string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", kind, err)
	}
	if result.Valid() {
		return nil
	}
	errs := result.Errors()
	if len(errs) == 0 {
		return fmt.Errorf("invalid %s payload", kind)
	}
	return fmt.Errorf("invalid %s payload: %s", kind, errs[0].String())
}
