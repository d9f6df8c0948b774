package validation

import "testing"

func TestValidateExpensePayload(t *testing.T) {
	valid := `{"date":"2026/09/01","item":"lunch","amount":120,"category":"食","transactionType":"支出"}`
	if err := ValidateExpensePayload([]byte(valid)); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	invalid := map[string]string{
		"missing date":    `{"item":"lunch","amount":120,"category":"食","transactionType":"支出"}`,
		"bad date format": `{"date":"2026-09-01","item":"lunch","amount":120,"category":"食","transactionType":"支出"}`,
		"negative amount": `{"date":"2026/09/01","item":"lunch","amount":-1,"category":"食","transactionType":"支出"}`,
		"float amount":    `{"date":"2026/09/01","item":"lunch","amount":1.5,"category":"食","transactionType":"支出"}`,
		"bad type":        `{"date":"2026/09/01","item":"lunch","amount":120,"category":"食","transactionType":"transfer"}`,
		"empty item":      `{"date":"2026/09/01","item":"","amount":120,"category":"食","transactionType":"支出"}`,
		"not json":        `date=2026`,
	}
	for name, payload := range invalid {
		if err := ValidateExpensePayload([]byte(payload)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestValidateAssetPayload(t *testing.T) {
	valid := `{"item":"2330","asset_type":"股票","acquisition_value":6000,"quantity":10}`
	if err := ValidateAssetPayload([]byte(valid)); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	sentinel := `{"item":"deposit","asset_type":"定期存款","acquisition_value":100000,"quantity":-1}`
	if err := ValidateAssetPayload([]byte(sentinel)); err != nil {
		t.Errorf("sentinel quantity rejected: %v", err)
	}

	invalid := map[string]string{
		"below sentinel": `{"item":"x","asset_type":"股票","acquisition_value":1,"quantity":-2}`,
		"missing item":   `{"asset_type":"股票","acquisition_value":1,"quantity":1}`,
	}
	for name, payload := range invalid {
		if err := ValidateAssetPayload([]byte(payload)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestSanitizeForFormulaInjection(t *testing.T) {
	cases := map[string]string{
		"=1+1":   "'=1+1",
		"+SUM()": "'+SUM()",
		"-2":     "'-2",
		"@cmd":   "'@cmd",
		"lunch":  "lunch",
		"":       "",
	}
	for in, want := range cases {
		if got := SanitizeForFormulaInjection(in); got != want {
			t.Errorf("SanitizeForFormulaInjection(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateClientContentType(t *testing.T) {
	for _, ok := range []string{"text/csv", "text/csv; charset=utf-8", "application/vnd.ms-excel"} {
		if err := ValidateClientContentType(ok); err != nil {
			t.Errorf("ValidateClientContentType(%q) = %v", ok, err)
		}
	}
	if err := ValidateClientContentType("application/pdf"); err == nil {
		t.Error("pdf content type accepted")
	}
}
