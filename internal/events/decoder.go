package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"eventScope/internal/model"
)

// ErrUnknownEvent is returned for logs the contract interface does not describe.
var ErrUnknownEvent = errors.New("unknown event")

// Decoder turns raw logs into named events using a contract ABI.
type Decoder struct {
	contractABI abi.ABI
}

// NewDecoder parses the ABI JSON returned by the explorer.
func NewDecoder(abiJSON string) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &Decoder{contractABI: parsed}, nil
}

// Decode converts a raw log into a LogEvent with arguments in declaration order.
func (d *Decoder) Decode(log types.Log) (model.LogEvent, error) {
	if len(log.Topics) == 0 {
		return model.LogEvent{}, fmt.Errorf("anonymous log: %w", ErrUnknownEvent)
	}
	event, err := d.contractABI.EventByID(log.Topics[0])
	if err != nil {
		return model.LogEvent{}, fmt.Errorf("topic0 %s: %w", log.Topics[0].Hex(), ErrUnknownEvent)
	}

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return model.LogEvent{}, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}

	topicValues := make(map[string]interface{}, len(indexed))
	if err := abi.ParseTopicsIntoMap(topicValues, indexed, log.Topics[1:]); err != nil {
		return model.LogEvent{}, fmt.Errorf("%s: parse topics: %w", event.Name, err)
	}

	dataValues, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.LogEvent{}, fmt.Errorf("%s: unpack data: %w", event.Name, err)
	}

	args := make([]model.Arg, 0, len(event.Inputs))
	next := 0
	for i, input := range event.Inputs {
		var value interface{}
		if input.Indexed {
			value = topicValues[input.Name]
		} else {
			if next >= len(dataValues) {
				return model.LogEvent{}, fmt.Errorf("%s: missing data value for %s", event.Name, input.Name)
			}
			value = dataValues[next]
			next++
		}

		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		args = append(args, model.Arg{
			Name:  name,
			Type:  input.Type.String(),
			Value: FormatValue(value),
		})
	}

	return model.LogEvent{
		Contract:    log.Address.Hex(),
		Event:       event.RawName,
		Args:        args,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeAll decodes logs in order, dropping those that fail. The number of
// dropped logs and the first unexpected error are reported alongside.
func (d *Decoder) DecodeAll(logs []types.Log) ([]model.LogEvent, int, error) {
	out := make([]model.LogEvent, 0, len(logs))
	var skipped int
	var firstErr error
	for _, log := range logs {
		if log.Removed {
			skipped++
			continue
		}
		event, err := d.Decode(log)
		if err != nil {
			skipped++
			if firstErr == nil && !errors.Is(err, ErrUnknownEvent) {
				firstErr = err
			}
			continue
		}
		out = append(out, event)
	}
	return out, skipped, firstErr
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
