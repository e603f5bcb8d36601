package intent

import (
	"encoding/json"
	"fmt"
)

// Intent is a recognized command. Values are never mutated; Resolver.Supply
// returns a new Intent.
type Intent struct {
	Params     Params
	Missing    []Param
	Confidence float64
}

// Kind returns the kind of the intent's parameters.
func (i Intent) Kind() Kind {
	if i.Params == nil {
		return KindUnknown
	}
	return i.Params.Kind()
}

// Complete reports whether every required parameter is present.
func (i Intent) Complete() bool {
	return len(i.Missing) == 0
}

// Chain returns the chain the intent targets.
func (i Intent) Chain() string {
	if i.Params == nil {
		return ""
	}
	return i.Params.Field(ParamChain)
}

type wireIntent struct {
	Kind       Kind            `json:"kind"`
	Params     json.RawMessage `json:"params"`
	Missing    []Param         `json:"missing,omitempty"`
	Confidence float64         `json:"confidence"`
}

// MarshalJSON encodes the intent with a kind discriminator.
func (i Intent) MarshalJSON() ([]byte, error) {
	params := i.Params
	if params == nil {
		params = Unknown{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireIntent{
		Kind:       params.Kind(),
		Params:     raw,
		Missing:    i.Missing,
		Confidence: i.Confidence,
	})
}

// UnmarshalJSON decodes an intent written by MarshalJSON.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var w wireIntent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	params, err := decodeParams(w.Kind, w.Params)
	if err != nil {
		return err
	}
	*i = Intent{Params: params, Missing: w.Missing, Confidence: w.Confidence}
	return nil
}

func decodeParams(kind Kind, raw json.RawMessage) (Params, error) {
	switch kind {
	case KindTransferNative:
		var p TransferNative
		err := unmarshalParams(raw, &p)
		return p, err
	case KindTransferToken:
		var p TransferToken
		err := unmarshalParams(raw, &p)
		return p, err
	case KindSwap:
		var p Swap
		err := unmarshalParams(raw, &p)
		return p, err
	case KindBuy:
		var p Buy
		err := unmarshalParams(raw, &p)
		return p, err
	case KindSell:
		var p Sell
		err := unmarshalParams(raw, &p)
		return p, err
	case KindTransferNFT:
		var p TransferNFT
		err := unmarshalParams(raw, &p)
		return p, err
	case KindCheckBalance:
		var p CheckBalance
		err := unmarshalParams(raw, &p)
		return p, err
	case KindShowAddress:
		return ShowAddress{}, nil
	case KindShowHistory:
		return ShowHistory{}, nil
	case KindUnknown, "":
		return Unknown{}, nil
	default:
		return nil, fmt.Errorf("unknown intent kind %q", kind)
	}
}

func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode intent params: %w", err)
	}
	return nil
}
