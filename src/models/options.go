package models

// Options is the per-user category taxonomy document, written once at
// onboarding and read-mostly afterwards.
type Options struct {
	TransactionType TransactionOptions `json:"transactionType"`
	AssetType       AssetOptions       `json:"assetType"`
}

type TransactionOptions struct {
	Transactions []string `json:"transactions"`
}

type AssetOptions struct {
	Assets      AssetClasses `json:"assets"`
	Liabilities []string     `json:"liabilities"`
}

type AssetClasses struct {
	CurrentAssets []string `json:"current_assets"`
	// FixedAssets are the tradable types whose value comes from market
	// prices rather than manual edits.
	FixedAssets []string `json:"fixed_assets"`
}

// OptionsDocumentID is the fixed document id inside a user's options
// collection, as is RelationshipDocumentID for the relationship collection.
const (
	OptionsDocumentID      = "options"
	RelationshipDocumentID = "relationship"
)

// DefaultOptions returns the taxonomy every new user starts with.
func DefaultOptions() Options {
	return Options{
		TransactionType: TransactionOptions{
			Transactions: []string{"食", "衣", "住", "行", "娛樂", "醫療", "教育", "保險", "3C"},
		},
		AssetType: AssetOptions{
			Assets: AssetClasses{
				CurrentAssets: []string{"活期存款", "定期存款", "現金", "虛擬貨幣"},
				FixedAssets:   []string{"債券", "金融股", "股票", "市值ETF", "高股息ETF"},
			},
			Liabilities: []string{"信用卡", "借貸"},
		},
	}
}

// HasFixedAssetType reports whether assetType is one of the tradable types.
func (o Options) HasFixedAssetType(assetType string) bool {
	for _, t := range o.AssetType.Assets.FixedAssets {
		if t == assetType {
			return true
		}
	}
	return false
}

// HasLiabilityMethod reports whether paymentMethod is a configured liability
// (credit card, loan).
func (o Options) HasLiabilityMethod(paymentMethod string) bool {
	for _, m := range o.AssetType.Liabilities {
		if m == paymentMethod {
			return true
		}
	}
	return false
}
