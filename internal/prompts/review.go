package prompts

// ReviewPrompt precedes the reply text in the Korean quality review request.
// The reply is appended directly after the trailing quote marks.
const ReviewPrompt = `Review and correct this Discord message for Korean language quality.

CRITICAL CHECKS:

1. **Brand Name Accuracy - HIGHEST PRIORITY**:
   - ALWAYS use "토카막 네트워크" for Tokamak Network (NOT just "토카막")
   - NEVER use typos: "토라막", "토큰막", "토까막"
   - Verify official names: "토카막 네트워크", "Tokamak Rollup Hub" / "TRH", "GranTON", "Titan"
   - Token symbols are NEVER translated: "TON", "WTON", "$TOKAMAK" (not "톤", "더블유톤", "토카막 토큰")

2. **Emoji Usage**: Limit to 2-3 emojis per response
   - BAD: "**🔍 핵심 특징**", "**💼 중앙화 거래소**" (decorative emoji headers)
   - GOOD: "**핵심 특징**", "🔗 **공식 리소스**"

3. **Terminology Consistency**:
   - BAD: "전직(FT)", "시간제(PT)"
   - GOOD: "풀타임" or "상근", "파트타임" or "비상근"
   - Remove needless English in parentheses: "DAO 후보(Candidate)" → "DAO 후보"

4. **Natural Korean Expressions**:
   - BAD: "보안 기능으로 인해", "L2 ↔ L2 간"
   - GOOD: "특별한 보안 설계로", "L2 체인끼리 직접"
   - Omit pronouns naturally rather than literal "그", "그녀", "그것"

5. **Section Header Style**: simple bold "**제목**:" or a single emoji "🔗 **제목**" for important sections only

6. **Discord Markdown**: replace "####" headers with **bold text** or blank lines

CRITICAL - URL HANDLING:
- Keep URLs EXACTLY as they appear
- DO NOT duplicate or repeat URLs
- DO NOT add extra links

IMPORTANT:
- If the message is in English, return it unchanged
- Only output the corrected message text (no explanations)
- If no corrections are needed, return the original text exactly
- Preserve all code blocks

Original message:
"""
`
