package intent

// Schema is the static recognition and clarification table of one Kind.
type Schema struct {
	Kind Kind
	// Triggers are words or phrases; any one of them selects the rule.
	Triggers []string
	// Requires must all be present in addition to a trigger.
	Requires []string
	// Excludes disqualify the rule when any is present.
	Excludes []string
	Required []Param
	Optional []Param
	// Confidence applies when nothing is missing, Partial otherwise.
	Confidence        float64
	PartialConfidence float64
}

// Schemas is the ordered rule table. Recognition evaluates kinds in Order and
// the first satisfied rule wins.
type Schemas struct {
	order  []Kind
	byKind map[Kind]Schema
}

// NewSchemas builds a table evaluated in the given order.
func NewSchemas(schemas ...Schema) Schemas {
	s := Schemas{byKind: make(map[Kind]Schema, len(schemas))}
	for _, schema := range schemas {
		if _, dup := s.byKind[schema.Kind]; !dup {
			s.order = append(s.order, schema.Kind)
		}
		s.byKind[schema.Kind] = schema
	}
	return s
}

// DefaultSchemas returns the builtin rule table.
func DefaultSchemas() Schemas {
	return NewSchemas(
		Schema{
			Kind:              KindTransferNative,
			Triggers:          []string{"send", "transfer", "pay"},
			Excludes:          []string{"nft", "token", "tokens"},
			Required:          []Param{ParamAmount, ParamRecipient},
			Optional:          []Param{ParamChain},
			Confidence:        0.9,
			PartialConfidence: 0.6,
		},
		Schema{
			Kind:              KindTransferToken,
			Triggers:          []string{"send", "transfer", "pay"},
			Excludes:          []string{"nft"},
			Required:          []Param{ParamAmount, ParamToken, ParamRecipient},
			Optional:          []Param{ParamChain},
			Confidence:        0.9,
			PartialConfidence: 0.6,
		},
		Schema{
			Kind:              KindSwap,
			Triggers:          []string{"swap", "exchange", "trade"},
			Required:          []Param{ParamAmountIn, ParamTokenIn, ParamTokenOut},
			Optional:          []Param{ParamSlippage, ParamChain},
			Confidence:        0.85,
			PartialConfidence: 0.5,
		},
		Schema{
			Kind:              KindBuy,
			Triggers:          []string{"buy", "purchase"},
			Required:          []Param{ParamAmount, ParamToken},
			Optional:          []Param{ParamSlippage, ParamChain},
			Confidence:        0.85,
			PartialConfidence: 0.5,
		},
		Schema{
			Kind:              KindSell,
			Triggers:          []string{"sell"},
			Required:          []Param{ParamAmount, ParamToken},
			Optional:          []Param{ParamSlippage, ParamChain},
			Confidence:        0.85,
			PartialConfidence: 0.5,
		},
		Schema{
			Kind:              KindCheckBalance,
			Triggers:          []string{"balance", "how much"},
			Optional:          []Param{ParamToken, ParamChain},
			Confidence:        0.9,
			PartialConfidence: 0.9,
		},
		Schema{
			Kind:              KindTransferNFT,
			Triggers:          []string{"send", "transfer"},
			Requires:          []string{"nft"},
			Required:          []Param{ParamContract, ParamTokenID, ParamRecipient},
			Optional:          []Param{ParamChain},
			Confidence:        0.8,
			PartialConfidence: 0.4,
		},
		Schema{
			Kind:              KindShowAddress,
			Triggers:          []string{"address", "receive", "deposit", "qr"},
			Confidence:        0.9,
			PartialConfidence: 0.9,
		},
		Schema{
			Kind:              KindShowHistory,
			Triggers:          []string{"history", "transactions", "activity"},
			Confidence:        0.9,
			PartialConfidence: 0.9,
		},
	)
}

// Lookup returns the schema of kind.
func (s Schemas) Lookup(kind Kind) (Schema, bool) {
	schema, ok := s.byKind[kind]
	return schema, ok
}

// Order returns the evaluation order.
func (s Schemas) Order() []Kind {
	return append([]Kind(nil), s.order...)
}

// Missing lists required parameters absent from p, in schema order.
func (s Schema) Missing(p Params) []Param {
	var missing []Param
	for _, name := range s.Required {
		if p.Field(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s Schema) confidence(missing []Param) float64 {
	if len(missing) == 0 {
		return s.Confidence
	}
	return s.PartialConfidence
}
