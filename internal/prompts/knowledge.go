package prompts

// Contract addresses on Ethereum mainnet.
const (
	TONAddress  = "0x2be5e8c109e2197D077D13A82dAead6a9b3433C5"
	WTONAddress = "0xc4A11aaf6ea915Ed7Ac194161d2fC9384F15bff2"
)

const knowledgeTemplate = `# Tokamak Network Knowledge Base

## Core Technology
- **Tokamak Network**: On-demand Ethereum Layer 2 platform enabling customized L2 networks
  - **Modular Architecture**: Flexible rollup system supporting various rollup structures
  - **Universal & Scalable**: Versatile and extensible for diverse use cases
- **TON Token** (Ticker: **$TOKAMAK**): Native ERC-20 token used for
  - **Security**: Staked to Layer2 operators for network protection
  - **Governance**: Voting on protocol upgrades and ecosystem decisions
- **WTON**: Wrapped version (1 TON = 1 WTON, 27 decimals for precision in DeFi)
- **Cross-Layer Message Protocol**: L2 networks communicate directly without relying on the base layer

## Four Core Pillars
1. **Easy L2 Deployment**: Customizable solutions fostering ecosystem expansion
2. **L2 Interoperability**: Direct chain-to-chain messaging between custom networks
3. **Security Infrastructure**: TON staking strengthens L2 protection
4. **Autonomous Governance**: TON stakers control protocol evolution

## Tokamak Rollup Hub (TRH)
"L2 On-Demand Tailored for Ethereum": deploy customized L2 rollups on Ethereum.

**Current Status**:
- ✅ **Devnet**: Live for local testing
- 🚧 **Mainnet**: Planned for Q1 2026 (internal testing)

**Three Core Pillars**:
1. **Stack**: Customize the tech stack for performance, security and cost
2. **Deployment SDK**: A CLI that lets entry-level developers launch chains on their own infrastructure
3. **Modular Integration**: Modular components extending AppChain functionality

**Resources**:
- [Website](https://rolluphub.tokamak.network/)
- [GitHub SDK](https://github.com/tokamak-network/trh-sdk)
- [Documentation](https://docs.tokamak.network/home/service-guide)

## Ecosystem Protocols
- **L2 Infrastructure** and **Application-Specific L2s** (gaming, privacy)
- **zk-EVM**: zk-SNARK prover system, production-ready since July 2025
- **Blob Sharing**: Lower data availability costs through rollup collaboration
- **Cross-Chain Swap**: Swaps secured by L1/L2 without third-party consensus
- **L2 Watchtower**, **Verifiable Randomness**, **Sybil Resistance**
- **DAO**: DAO V2 community version (September 2025), TIP (Tokamak Improvement Proposal) process
- **Staking V2**: Community-driven staking launched August 2025
- **GemSton**: NFT-linked gameplay for staked TON
- **ZKP Channel** (in development) and **Faucet** for testnets

## Important Transitions

### Community Version Migration (2025, completed)
- Staking and DAO interfaces are community-maintained and fully decentralized
- [GitHub](https://github.com/tokamak-network/staking-community-version)
- [Live Interface](https://staking-community-version.vercel.app/)
- staking.tokamak.network and dao.tokamak.network are no longer available

### Titan L2 Sunset (completed)
- Launched June 30, 2023; retired December 26, 2024
- Its operational experience was folded into TRH
- Deposits are disabled and no transactions are possible

## Official Resources
- [Documentation](https://docs.tokamak.network)
- [Website](https://tokamak.network)
- [Rollup Hub](https://rolluphub.tokamak.network)
- [Price Dashboard](https://www.tokamak.network/about/price)
- [Grant Program](https://tokamak.notion.site/Tokamak-Network-Grant-Program-GranTON-f2384b458ea341a0987c7e73a909aa21)
- [Staking Interface](https://staking-community-version.vercel.app)

## Community Channels
- **Discord**: <https://discord.gg/XrHXrDTuNd>
- **Telegram**: <https://t.me/tokamak_network>

## Trading Venues

**Centralized Exchanges (ticker $TOKAMAK)**:
- Korean: Upbit (업비트), Bithumb (빗썸), Coinone (코인원), Gopax (고팍스)
- Global: XT, WEEX, Biconomy, Digifinex

**Decentralized Exchanges**:
- ⚠️ TON cannot be traded directly on a DEX because of its security design
- Convert TON → WTON via Etherscan first, then swap WTON on Uniswap or another DEX

## Contract Addresses (Ethereum Mainnet)
{{FENCE}}
TON:  {{TON}}
WTON: {{WTON}}
{{FENCE}}

## Common Questions

When a matching Answer Pattern exists, use it. Only the patterns relevant to the current question are included below. If none appear, answer from this Knowledge Base.`

// TokamakKnowledge returns the knowledge base section.
func TokamakKnowledge() string {
	return fill(knowledgeTemplate, map[string]string{
		"{{FENCE}}": fence,
		"{{TON}}":   TONAddress,
		"{{WTON}}":  WTONAddress,
	})
}
