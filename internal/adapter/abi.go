package adapter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// minterABIJSON is the application binary interface of the ETH-backed token
// minter contract: the read functions the enrichment pipeline consumes and
// the four events the projection layer indexes.
const minterABIJSON = `[
  {
    "type": "function",
    "name": "tokenCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getTokenMetadataRange",
    "stateMutability": "view",
    "inputs": [
      {"name": "start", "type": "uint256"},
      {"name": "end", "type": "uint256"}
    ],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "tokenId", "type": "uint256"},
          {"name": "name", "type": "string"},
          {"name": "symbol", "type": "string"},
          {"name": "creator", "type": "address"},
          {"name": "uri", "type": "string"},
          {"name": "basePrice", "type": "uint256"},
          {"name": "slope", "type": "uint256"},
          {"name": "reserve", "type": "uint256"},
          {"name": "totalSupply", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getCurrentPrice",
    "stateMutability": "view",
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getReserve",
    "stateMutability": "view",
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "balanceOf",
    "stateMutability": "view",
    "inputs": [
      {"name": "account", "type": "address"},
      {"name": "tokenId", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "event",
    "name": "TokenCreated",
    "inputs": [
      {"name": "tokenId", "type": "uint256", "indexed": true},
      {"name": "name", "type": "string", "indexed": false},
      {"name": "symbol", "type": "string", "indexed": false},
      {"name": "creator", "type": "address", "indexed": true}
    ],
    "anonymous": false
  },
  {
    "type": "event",
    "name": "Minted",
    "inputs": [
      {"name": "buyer", "type": "address", "indexed": true},
      {"name": "tokenId", "type": "uint256", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "cost", "type": "uint256", "indexed": false},
      {"name": "newReserve", "type": "uint256", "indexed": false},
      {"name": "newTotalSupply", "type": "uint256", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "event",
    "name": "Burned",
    "inputs": [
      {"name": "seller", "type": "address", "indexed": true},
      {"name": "tokenId", "type": "uint256", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "refund", "type": "uint256", "indexed": false},
      {"name": "newReserve", "type": "uint256", "indexed": false},
      {"name": "newTotalSupply", "type": "uint256", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "event",
    "name": "ProtocolFeeRecipientChanged",
    "inputs": [
      {"name": "oldRecipient", "type": "address", "indexed": false},
      {"name": "newRecipient", "type": "address", "indexed": false}
    ],
    "anonymous": false
  }
]`

// MinterABI is the parsed minter contract ABI, shared by the chain adapter
// and the event projection layer.
var MinterABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(minterABIJSON))
	if err != nil {
		panic("invalid minter ABI: " + err.Error())
	}
	return parsed
}()
