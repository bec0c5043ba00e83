package prompts

import "strings"

// Topic is a canned answer injected into the system prompt when the user's
// message mentions one of its keywords.
type Topic struct {
	Name     string
	Keywords []string // lowercase; matched as substrings
	Content  string
}

// copyExactly formats a pattern whose Korean body the model must reproduce
// verbatim. english, when set, is an English reference line.
func copyExactly(heading, body, english string) string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(heading)
	sb.WriteString("\n**⚠️ COPY THIS ANSWER EXACTLY** (Korean):\n")
	sb.WriteString(fence + "\n")
	sb.WriteString(body)
	sb.WriteString("\n" + fence)
	if english != "" {
		sb.WriteString("\n**English reference**: ")
		sb.WriteString(english)
	}
	return sb.String()
}

const etherscanTON = "https://etherscan.io/token/" + TONAddress

// Topics is the ordered answer-pattern table. Matches are emitted in this
// order.
var Topics = []Topic{
	{
		Name: "intro",
		// Bare "토카막"/"tokamak" would match nearly every question.
		Keywords: []string{"뭔가요", "뭐예요", "뭐야", "what is", "무엇", "소개"},
		Content: copyExactly(`"토카막 네트워크가 뭔가요?" / "What is Tokamak Network?"`,
			`토카막 네트워크는 필요할 때마다 맞춤형 이더리움 L2 네트워크를 구축할 수 있는 플랫폼이에요.

**핵심 기능**:

• 모듈형 아키텍처: 게임, DeFi, NFT 등에 최적화된 L2 체인 구축
• 확장성: 이더리움 보안을 유지하며 속도↑ 비용↓
• L2 간 통신: 서로 다른 L2가 직접 통신 (L1 우회)
• 보안 인프라: TON 스테이킹으로 네트워크 보호

**주요 프로젝트**:

Tokamak Rollup Hub(TRH) - 누구나 앱 전용 L2를 쉽게 구축 (메인넷 2026년 1분기 출시 예정)

🔗 [공식 문서](<https://docs.tokamak.network>)
🌐 [웹사이트](<https://tokamak.network>)`, ""),
	},
	{
		Name:     "staking",
		Keywords: []string{"스테이킹", "staking", "stake", "스테이크"},
		Content: copyExactly(`"스테이킹 방법 알려주세요" / "Where can I stake?"`,
			`$TOKAMAK 스테이킹 방법:

🔗 [스테이킹 인터페이스](<https://staking-community-version.vercel.app>)

**진행 단계**:

• MetaMask 등 웹3 지갑 연결
• TON 또는 WTON 선택하여 스테이킹
• DAO 후보 선택 (거버넌스 참여)
• $TOKAMAK 리워드 획득

✅ 2025년 8월 출시된 커뮤니티 버전 (완전 탈중앙화)

📖 [자세한 가이드](<https://docs.tokamak.network>)`,
			"Staking V2 at https://staking-community-version.vercel.app/ - connect wallet, stake TON/WTON, select a DAO candidate."),
	},
	{
		Name:     "grant",
		Keywords: []string{"grant", "그랜트", "지원", "funding", "granton"},
		Content: copyExactly(`"Grant 프로그램에 어떻게 지원하나요?" / "How can I get funding?"`,
			`GranTON은 토카막 네트워크 생태계 프로젝트를 지원하는 공식 그랜트 프로그램이에요.

**지원 유형**:

• 풀타임: USDT/USDC + TON 그랜트
• 파트타임: $TOKAMAK 리워드 지급

🔗 [GranTON 공식 페이지](<https://tokamak.notion.site/Tokamak-Network-Grant-Program-GranTON-f2384b458ea341a0987c7e73a909aa21>)

자세한 지원 방법과 요구사항은 공식 페이지에서 확인하실 수 있어요!`, ""),
	},
	{
		Name:     "wton",
		Keywords: []string{"wton", "차이", "difference", "wrap"},
		Content: copyExactly(`"TON과 WTON의 차이가 뭔가요?" / "What's the difference between TON and WTON?"`,
			`**TON과 WTON의 차이**:

• TON: 네이티브 ERC-20 토큰 (18자리 소수)
• WTON: 래핑된 버전 (27자리 소수, DeFi 거래의 정밀도 향상)

**가치**: 1 TON = 1 WTON (항상 동일)

**거래 방식**:

• TON: CEX에서 거래 (업비트, 빗썸 등)
• WTON: DEX에서 거래 (Uniswap 등)

⚠️ TON은 특별한 보안 설계로 DEX에서 직접 거래할 수 없어요 → Etherscan에서 TON → WTON 변환 후 거래

🔗 [TON 컨트랙트](<`+etherscanTON+`>)`, ""),
	},
	{
		Name:     "dao",
		Keywords: []string{"dao", "거버넌스", "governance", "투표", "vote", "tip"},
		Content: copyExactly(`"DAO는 어떻게 참여하나요?" / "How does the DAO work?"`,
			`**토카막 네트워크 DAO 참여 방법**:

1. **TON/WTON 보유**: $TOKAMAK 토큰 필요

2. **스테이킹**: [커뮤니티 버전](<https://staking-community-version.vercel.app/>)에서 지갑 연결 후 스테이킹

3. **DAO 후보 선택**: 지지할 후보 선택으로 거버넌스 참여

4. **TIP 참여**: Tokamak Improvement Proposal 제안 및 투표

✅ 2025년 9월부터 완전히 탈중앙화된 DAO V2가 운영 중이에요

🔗 [공식 문서](<https://docs.tokamak.network/home/service-guide>)`, ""),
	},
	{
		Name:     "dex",
		Keywords: []string{"dex", "거래", "swap", "uniswap", "trade"},
		Content: copyExactly(`"DEX에서 TON을 거래할 수 있나요?"`,
			`❌ TON은 특별한 보안 설계로 DEX에서 직접 거래할 수 없어요.

**거래 방법**:

1. TON → WTON 변환: [Etherscan](<`+etherscanTON+`>)에서 변환
2. WTON 거래: Uniswap 등 DEX에서 거래
3. 필요시 재변환: WTON → TON

💡 WTON은 TON과 1:1 가치를 가진 DeFi 호환용 래핑 토큰이에요.

🔗 [자세한 가이드](<https://docs.tokamak.network>)`, ""),
	},
	{
		Name:     "interop",
		Keywords: []string{"통신", "interop", "cross", "메시지", "message protocol"},
		Content: copyExactly(`"L2 체인 간 통신은 어떻게 작동하나요?"`,
			`**Cross-Layer Message Protocol**로 L2 체인끼리 직접 통신할 수 있어요.

L1(이더리움)을 거치지 않고 L2 체인끼리 직접 메시지를 주고받아서 속도는 빠르고 비용은 낮아져요. 보안은 Tokamak의 검증 메커니즘으로 유지돼요.

예: 게임 전용 L2와 DeFi 전용 L2가 서로 자산이나 데이터를 직접 교환할 수 있어요.

🔗 [자세한 내용](<https://docs.tokamak.network>)`, ""),
	},
	{
		Name:     "buy",
		Keywords: []string{"구매", "buy", "purchase", "어디서", "where to buy", "거래소", "exchange"},
		Content: copyExactly(`"TON 토큰은 어디서 구매할 수 있나요?" / "Where can I buy TON?"`,
			`$TOKAMAK(TON) 토큰 구매처:

**중앙화 거래소 (CEX)**

• 한국: 업비트, 빗썸, 코인원, 고팍스
• 글로벌: XT, WEEX, Biconomy, Digifinex

**탈중앙화 거래소 (DEX)**

TON은 직접 거래 불가. TON → WTON 변환 후 Uniswap 등에서 거래

🔗 [TON 구매 가이드](<https://docs.tokamak.network/home/information/get-ton>)
🔗 [Etherscan 변환](<`+etherscanTON+`>)`, ""),
	},
	{
		Name:     "trh",
		Keywords: []string{"rollup hub", "trh", "출시", "launch", "메인넷", "mainnet", "빌드", "build", "개발"},
		Content: copyExactly(`"Tokamak Rollup Hub는 언제 출시되나요?" / "How do I build on Tokamak?"`,
			`Tokamak Rollup Hub (TRH)의 메인넷은 **2026년 1분기** 출시 예정이에요.

개발 네트워크(Devnet)는 이미 운영 중이라서 개발자들이 맞춤형 L2 체인을 테스트할 수 있어요.

🔗 [공식 웹사이트](<https://rolluphub.tokamak.network/>)
📖 [개발자 문서](<https://docs.tokamak.network/home/service-guide>)`,
			"TRH SDK at https://github.com/tokamak-network/trh-sdk - Devnet live, mainnet Q1 2026."),
	},
	{
		Name:     "titan",
		Keywords: []string{"titan", "타이탄", "종료", "sunset", "retired"},
		Content: copyExactly(`"Titan은 왜 종료됐나요?" / "What happened to Titan?"`,
			`Titan L2는 2024년 12월 26일에 종료됐어요.

**종료 이유**:

Titan은 토카막 네트워크의 첫 L2 메인넷으로, 기술 검증용으로 운영됐어요. 얻은 경험은 차세대 플랫폼인 **Tokamak Rollup Hub**(TRH)에 통합됐고, 이제 TRH가 더 유연하고 강력한 L2 구축 플랫폼으로 역할을 이어가요.

🎯 **현재**: TRH 메인넷 2026년 1분기 출시 예정

📖 [자세히 보기](<https://docs.tokamak.network>)`, ""),
	},
	{
		Name:     "price",
		Keywords: []string{"가격", "price", "시세", "coingecko", "coinmarketcap"},
		Content: `### "Where can I check TON price?"
📊 [Official Price Dashboard](<https://www.tokamak.network/about/price>)
📈 Other: CoinGecko, CoinMarketCap, [Dune Analytics](<https://dune.com/tokamak-network/tokamak-network-tokenomics-dashboard>)
💡 [Buying TON](<https://docs.tokamak.network/home/information/get-ton>)`,
	},
	{
		Name:     "invest",
		Keywords: []string{"투자", "invest", "financial", "returns"},
		Content: `### "Is this a good investment?"
I can't provide investment advice! I can help you understand the technology. DYOR (Do Your Own Research)!`,
	},
}

// Matches reports whether msg mentions any of the topic's keywords.
// msg must already be lowercased.
func (t Topic) Matches(msg string) bool {
	for _, kw := range t.Keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// MatchTopics returns the content of every topic whose keywords appear in
// message, case-insensitively, in table order.
func MatchTopics(message string) []string {
	lower := strings.ToLower(message)
	var matched []string
	for _, t := range Topics {
		if t.Matches(lower) {
			matched = append(matched, t.Content)
		}
	}
	return matched
}

// MatchingPatterns joins MatchTopics with blank lines. Empty when nothing
// matches.
func MatchingPatterns(message string) string {
	return strings.Join(MatchTopics(message), "\n\n")
}

// AllPatterns joins every topic's content in table order.
func AllPatterns() string {
	all := make([]string, len(Topics))
	for i, t := range Topics {
		all[i] = t.Content
	}
	return strings.Join(all, "\n\n")
}

func fill(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, k, v)
	}
	return tmpl
}
