package intent

import (
	"fmt"
	"strings"

	"ChatWallet/internal/registry"
)

// Resolver drives the clarification dialogue for incomplete intents.
type Resolver struct {
	schemas Schemas
	vocab   vocabulary
}

// NewResolver creates a Resolver over the same schema table the Recognizer
// uses.
func NewResolver(schemas Schemas, chains *registry.Registry) *Resolver {
	return &Resolver{schemas: schemas, vocab: newVocabulary(chains.Symbols())}
}

// Question returns the follow-up question for the first missing parameter,
// or false when the intent is complete.
func (r *Resolver) Question(in Intent) (string, bool) {
	if in.Complete() {
		return "", false
	}
	param := in.Missing[0]
	if q := question(in.Params, param); q != "" {
		return q, true
	}
	names := make([]string, 0, len(in.Missing))
	for _, p := range in.Missing {
		names = append(names, string(p))
	}
	return "I need more information. Please provide: " + strings.Join(names, ", "), true
}

func question(p Params, param Param) string {
	switch p := p.(type) {
	case TransferNative:
		switch param {
		case ParamAmount:
			return fmt.Sprintf("How much %s would you like to send?", p.Symbol)
		case ParamRecipient:
			return "What is the recipient address?"
		}
	case TransferToken:
		switch param {
		case ParamAmount:
			return fmt.Sprintf("How many %s tokens would you like to send?", p.Token)
		case ParamRecipient:
			return "What is the recipient address?"
		}
	case Swap:
		switch param {
		case ParamAmountIn:
			return "How much would you like to swap?"
		case ParamTokenIn:
			return "Which token would you like to swap from?"
		case ParamTokenOut:
			return "Which token would you like to swap to?"
		}
	case Buy:
		switch param {
		case ParamAmount:
			if p.Native != "" {
				return fmt.Sprintf("How much %s would you like to spend?", p.Native)
			}
			return "How much would you like to buy?"
		case ParamToken:
			return "Which token would you like to buy?"
		}
	case Sell:
		switch param {
		case ParamAmount:
			return "How much would you like to sell?"
		case ParamToken:
			return "Which token would you like to sell?"
		}
	case TransferNFT:
		switch param {
		case ParamContract:
			return "What is the NFT contract address?"
		case ParamTokenID:
			return "What is the token ID?"
		case ParamRecipient:
			return "What is the recipient address?"
		}
	}
	return ""
}

// Supply interprets reply as the value of the first missing parameter and
// returns the merged intent. It returns false, leaving in untouched, when
// reply cannot be read as that value.
func (r *Resolver) Supply(in Intent, reply string) (Intent, bool) {
	if in.Complete() || in.Params == nil {
		return in, false
	}
	param := in.Missing[0]
	value := r.interpret(param, reply)
	if value == "" {
		return in, false
	}
	params := in.Params.with(param, value)
	schema, ok := r.schemas.Lookup(params.Kind())
	if !ok {
		return in, false
	}
	missing := schema.Missing(params)
	return Intent{Params: params, Missing: missing, Confidence: schema.confidence(missing)}, true
}

func (r *Resolver) interpret(param Param, reply string) string {
	switch {
	case param.isAmount():
		return firstAmount(reply)
	case param.isAddress():
		return addressPattern.FindString(reply)
	case param.isToken():
		if syms := r.vocab.find(reply); len(syms) > 0 {
			return syms[0]
		}
		if m := wordPattern.FindStringSubmatch(reply); m != nil {
			return canonicalSymbol(m[1])
		}
	case param == ParamTokenID:
		if id := tokenID(reply); id != "" {
			return id
		}
		if m := bareIDPattern.FindStringSubmatch(reply); m != nil {
			return m[1]
		}
	}
	return ""
}
