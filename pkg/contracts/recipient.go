package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// RecipientABI is the subset of the relay recipient ABI used by the relay client
const RecipientABI = `[
	{
		"inputs": [
			{
				"internalType": "address",
				"name": "forwarder",
				"type": "address"
			}
		],
		"name": "isTrustedForwarder",
		"outputs": [
			{
				"internalType": "bool",
				"name": "",
				"type": "bool"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getTrustedForwarder",
		"outputs": [
			{
				"internalType": "address",
				"name": "",
				"type": "address"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// RecipientCaller is a read-only Go binding around a relay recipient contract.
type RecipientCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewRecipientCaller creates a new read-only instance of a relay recipient, bound to a specific deployed contract.
func NewRecipientCaller(address common.Address, caller bind.ContractCaller) (*RecipientCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(RecipientABI))
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(address, parsed, caller, nil, nil)
	return &RecipientCaller{contract: contract}, nil
}

// IsTrustedForwarder is a free data retrieval call binding the contract method isTrustedForwarder.
//
// Solidity: function isTrustedForwarder(address forwarder) view returns(bool)
func (_Recipient *RecipientCaller) IsTrustedForwarder(opts *bind.CallOpts, forwarder common.Address) (bool, error) {
	var out []interface{}
	err := _Recipient.contract.Call(opts, &out, "isTrustedForwarder", forwarder)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// GetTrustedForwarder is a free data retrieval call binding the contract method getTrustedForwarder.
//
// Solidity: function getTrustedForwarder() view returns(address)
func (_Recipient *RecipientCaller) GetTrustedForwarder(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	err := _Recipient.contract.Call(opts, &out, "getTrustedForwarder")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
