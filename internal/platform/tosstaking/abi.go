package tosstaking

// stakingABIJSON covers the view functions read from the staking contract.
const stakingABIJSON = `[
	{"type":"function","name":"runwayTos","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalLtos","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"stakingOf","stateMutability":"view","inputs":[{"name":"userAddress","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"stakedOf","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// claimableABIJSON covers the TOS to ETH conversion on the claimable contract.
const claimableABIJSON = `[
	{"type":"function","name":"claimableEther","stateMutability":"view","inputs":[{"name":"tosAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const (
	methodRunwayTos      = "runwayTos"
	methodTotalLtos      = "totalLtos"
	methodStakingOf      = "stakingOf"
	methodStakedOf       = "stakedOf"
	methodClaimableEther = "claimableEther"
)

// Mainnet deployments.
const (
	DefaultStakingContract   = "0x14fb0933Ec45ecE75A431D10AFAa1DDF7BfeE44C"
	DefaultClaimableContract = "0xD27A68a457005f822863199Af0F817f672588ad6"
)

// TokenDecimals is the fixed-point scale of every amount the contracts return.
const TokenDecimals = 18
