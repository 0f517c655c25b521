package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const erc20TransferABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}]`

var (
	erc20ABI           = mustParseABI(erc20TransferABI)
	transferEventTopic = erc20ABI.Events["Transfer"].ID
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type transferLog struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

func isTransferLog(l *types.Log) bool {
	return len(l.Topics) >= 3 && l.Topics[0] == transferEventTopic
}

func decodeTransferLog(l *types.Log) (*transferLog, error) {
	values, err := erc20ABI.Unpack("Transfer", l.Data)
	if err != nil {
		return nil, errors.Wrap(err, "unpack transfer data")
	}
	if len(values) != 1 {
		return nil, errors.Errorf("unexpected transfer data fields: %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected transfer value type %T", values[0])
	}

	return &transferLog{
		From:  common.BytesToAddress(l.Topics[1].Bytes()),
		To:    common.BytesToAddress(l.Topics[2].Bytes()),
		Value: value,
	}, nil
}
