package solana

import (
	"bytes"
	"encoding/json"
)

// wire types for getTransaction / getAccountInfo with jsonParsed encoding

type transactionResult struct {
	Slot        uint64           `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Meta        *transactionMeta `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys  []accountKey          `json:"accountKeys"`
			Instructions []instructionEnvelope `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

type transactionMeta struct {
	Err               json.RawMessage       `json:"err"`
	InnerInstructions []innerInstructionSet `json:"innerInstructions"`
	PostTokenBalances []tokenBalance        `json:"postTokenBalances"`
}

func (m *transactionMeta) failed() bool {
	trimmed := bytes.TrimSpace(m.Err)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

type accountKey struct {
	Pubkey string `json:"pubkey"`
}

// UnmarshalJSON accepts both the object form and the legacy plain string form.
func (k *accountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}
	type alias accountKey
	return json.Unmarshal(data, (*alias)(k))
}

type innerInstructionSet struct {
	Index        int                   `json:"index"`
	Instructions []instructionEnvelope `json:"instructions"`
}

type instructionEnvelope struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

type parsedInstruction struct {
	Type string       `json:"type"`
	Info transferInfo `json:"info"`
}

type transferInfo struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Authority   string       `json:"authority"`
	Mint        string       `json:"mint"`
	Amount      string       `json:"amount"`
	TokenAmount *tokenAmount `json:"tokenAmount"`
}

type tokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type tokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount tokenAmount `json:"uiTokenAmount"`
}

type accountInfoResult struct {
	Value *struct {
		Owner string          `json:"owner"`
		Data  json.RawMessage `json:"data"`
	} `json:"value"`
}

type parsedAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Owner       string      `json:"owner"`
			Mint        string      `json:"mint"`
			TokenAmount tokenAmount `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}
