package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// RelayHubABI is the subset of the RelayHub ABI used by the relay client
const RelayHubABI = `[
	{
		"inputs": [
			{
				"internalType": "uint256",
				"name": "paymasterMaxAcceptanceBudget",
				"type": "uint256"
			},
			{
				"components": [
					{
						"components": [
							{"internalType": "address", "name": "from", "type": "address"},
							{"internalType": "address", "name": "to", "type": "address"},
							{"internalType": "uint256", "name": "value", "type": "uint256"},
							{"internalType": "uint256", "name": "gas", "type": "uint256"},
							{"internalType": "uint256", "name": "nonce", "type": "uint256"},
							{"internalType": "bytes", "name": "data", "type": "bytes"}
						],
						"internalType": "struct IForwarder.ForwardRequest",
						"name": "request",
						"type": "tuple"
					},
					{
						"components": [
							{"internalType": "uint256", "name": "gasPrice", "type": "uint256"},
							{"internalType": "uint256", "name": "pctRelayFee", "type": "uint256"},
							{"internalType": "uint256", "name": "baseRelayFee", "type": "uint256"},
							{"internalType": "address", "name": "relayWorker", "type": "address"},
							{"internalType": "address", "name": "paymaster", "type": "address"},
							{"internalType": "address", "name": "forwarder", "type": "address"},
							{"internalType": "bytes", "name": "paymasterData", "type": "bytes"},
							{"internalType": "uint256", "name": "clientId", "type": "uint256"}
						],
						"internalType": "struct GsnTypes.RelayData",
						"name": "relayData",
						"type": "tuple"
					}
				],
				"internalType": "struct GsnTypes.RelayRequest",
				"name": "relayRequest",
				"type": "tuple"
			},
			{
				"internalType": "bytes",
				"name": "signature",
				"type": "bytes"
			},
			{
				"internalType": "bytes",
				"name": "approvalData",
				"type": "bytes"
			},
			{
				"internalType": "uint256",
				"name": "externalGasLimit",
				"type": "uint256"
			}
		],
		"name": "relayCall",
		"outputs": [
			{
				"internalType": "bool",
				"name": "paymasterAccepted",
				"type": "bool"
			},
			{
				"internalType": "bytes",
				"name": "returnValue",
				"type": "bytes"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "versionHub",
		"outputs": [
			{
				"internalType": "string",
				"name": "",
				"type": "string"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{
				"indexed": true,
				"internalType": "address",
				"name": "relayManager",
				"type": "address"
			},
			{
				"indexed": false,
				"internalType": "uint256",
				"name": "baseRelayFee",
				"type": "uint256"
			},
			{
				"indexed": false,
				"internalType": "uint256",
				"name": "pctRelayFee",
				"type": "uint256"
			},
			{
				"indexed": false,
				"internalType": "string",
				"name": "relayUrl",
				"type": "string"
			}
		],
		"name": "RelayServerRegistered",
		"type": "event"
	}
]`

// RelayHub is a Go binding around the RelayHub contract.
type RelayHub struct {
	RelayHubCaller   // Read-only binding to the contract
	RelayHubFilterer // Log filterer for contract events
}

// RelayHubCaller is a read-only Go binding around the RelayHub contract.
type RelayHubCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// RelayHubFilterer is a log filtering Go binding around the RelayHub contract events.
type RelayHubFilterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewRelayHub creates a new instance of RelayHub, bound to a specific deployed contract.
func NewRelayHub(address common.Address, backend bind.ContractBackend) (*RelayHub, error) {
	contract, err := bindRelayHub(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &RelayHub{RelayHubCaller: RelayHubCaller{contract: contract}, RelayHubFilterer: RelayHubFilterer{contract: contract}}, nil
}

// NewRelayHubFilterer creates a new log filterer instance of RelayHub, bound to a specific deployed contract.
func NewRelayHubFilterer(address common.Address, filterer bind.ContractFilterer) (*RelayHubFilterer, error) {
	contract, err := bindRelayHub(address, nil, nil, filterer)
	if err != nil {
		return nil, err
	}
	return &RelayHubFilterer{contract: contract}, nil
}

// bindRelayHub binds a generic wrapper to an already deployed contract.
func bindRelayHub(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(RelayHubABI))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}

// VersionHub is a free data retrieval call binding the contract method versionHub.
//
// Solidity: function versionHub() view returns(string)
func (_RelayHub *RelayHubCaller) VersionHub(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	err := _RelayHub.contract.Call(opts, &out, "versionHub")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// RelayHubRelayServerRegisteredIterator is returned from FilterRelayServerRegistered and is used to iterate over the raw logs and unpacked data for RelayServerRegistered events raised by the RelayHub contract.
type RelayHubRelayServerRegisteredIterator struct {
	Event *RelayHubRelayServerRegistered // Event containing the contract specifics and raw log

	contract *bind.BoundContract // Generic contract to use for unpacking event data
	event    string              // Event name to use for unpacking event data

	logs chan types.Log        // Log channel receiving the found contract events
	sub  ethereum.Subscription // Subscription for errors, completion and termination
	done bool                  // Whether the subscription completed delivering logs
	fail error                 // Occurred error to stop iteration
}

// Next advances the iterator to the subsequent event, returning whether there
// are any more events found. In case of a retrieval or parsing error, false is
// returned and Error() can be queried for the exact failure.
func (it *RelayHubRelayServerRegisteredIterator) Next() bool {
	if it.fail != nil {
		return false
	}
	if it.done {
		select {
		case log := <-it.logs:
			return it.unpack(log)
		default:
			return false
		}
	}
	select {
	case log := <-it.logs:
		return it.unpack(log)
	case err := <-it.sub.Err():
		it.done = true
		it.fail = err
		return it.Next()
	}
}

func (it *RelayHubRelayServerRegisteredIterator) unpack(log types.Log) bool {
	it.Event = new(RelayHubRelayServerRegistered)
	if err := it.contract.UnpackLog(it.Event, it.event, log); err != nil {
		it.fail = err
		return false
	}
	it.Event.Raw = log
	return true
}

// Error returns any retrieval or parsing error occurred during filtering.
func (it *RelayHubRelayServerRegisteredIterator) Error() error {
	return it.fail
}

// Close terminates the iteration process, releasing any pending underlying
// resources.
func (it *RelayHubRelayServerRegisteredIterator) Close() error {
	it.sub.Unsubscribe()
	return nil
}

// RelayHubRelayServerRegistered represents a RelayServerRegistered event raised by the RelayHub contract.
type RelayHubRelayServerRegistered struct {
	RelayManager common.Address
	BaseRelayFee *big.Int
	PctRelayFee  *big.Int
	RelayUrl     string
	Raw          types.Log // Blockchain specific contextual infos
}

// FilterRelayServerRegistered is a free log retrieval operation binding the contract event RelayServerRegistered.
//
// Solidity: event RelayServerRegistered(address indexed relayManager, uint256 baseRelayFee, uint256 pctRelayFee, string relayUrl)
func (_RelayHub *RelayHubFilterer) FilterRelayServerRegistered(opts *bind.FilterOpts, relayManager []common.Address) (*RelayHubRelayServerRegisteredIterator, error) {
	var relayManagerRule []interface{}
	for _, relayManagerItem := range relayManager {
		relayManagerRule = append(relayManagerRule, relayManagerItem)
	}

	logs, sub, err := _RelayHub.contract.FilterLogs(opts, "RelayServerRegistered", relayManagerRule)
	if err != nil {
		return nil, err
	}
	return &RelayHubRelayServerRegisteredIterator{contract: _RelayHub.contract, event: "RelayServerRegistered", logs: logs, sub: sub}, nil
}

// WatchRelayServerRegistered is a free log subscription operation binding the contract event RelayServerRegistered.
//
// Solidity: event RelayServerRegistered(address indexed relayManager, uint256 baseRelayFee, uint256 pctRelayFee, string relayUrl)
func (_RelayHub *RelayHubFilterer) WatchRelayServerRegistered(opts *bind.WatchOpts, sink chan<- *RelayHubRelayServerRegistered, relayManager []common.Address) (event.Subscription, error) {
	var relayManagerRule []interface{}
	for _, relayManagerItem := range relayManager {
		relayManagerRule = append(relayManagerRule, relayManagerItem)
	}

	logs, sub, err := _RelayHub.contract.WatchLogs(opts, "RelayServerRegistered", relayManagerRule)
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case log := <-logs:
				// New log arrived, parse the event and forward to the user
				event := new(RelayHubRelayServerRegistered)
				if err := _RelayHub.contract.UnpackLog(event, "RelayServerRegistered", log); err != nil {
					return err
				}
				event.Raw = log

				select {
				case sink <- event:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// ParseRelayServerRegistered is a log parse operation binding the contract event RelayServerRegistered.
//
// Solidity: event RelayServerRegistered(address indexed relayManager, uint256 baseRelayFee, uint256 pctRelayFee, string relayUrl)
func (_RelayHub *RelayHubFilterer) ParseRelayServerRegistered(log types.Log) (*RelayHubRelayServerRegistered, error) {
	event := new(RelayHubRelayServerRegistered)
	if err := _RelayHub.contract.UnpackLog(event, "RelayServerRegistered", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
