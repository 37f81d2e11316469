package identity

import "strings"

// NormalizeEmail 规范化邮箱标识（trim + 小写）
// 空值/纯空白返回 ""，任何身份比较必须先经过规范化
func NormalizeEmail(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	return strings.ToLower(v)
}

// NormalizePhone 规范化电话标识（近似 E.164）
// 规则：
//  1. 只保留数字和 '+'
//  2. '+' 只允许出现在开头一次，其余位置丢弃
//  3. 无前导 '+' 且以 "00" 开头（长度>2）时，"00" 前缀替换为 '+'
//  4. 其余情况保持纯数字
func NormalizePhone(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}

	leadingPlus := s[0] == '+'
	digits := strings.ReplaceAll(s, "+", "")
	if digits == "" {
		return ""
	}

	if leadingPlus {
		return "+" + digits
	}
	if len(digits) > 2 && strings.HasPrefix(digits, "00") {
		return "+" + digits[2:]
	}
	return digits
}
