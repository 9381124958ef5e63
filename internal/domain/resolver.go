package domain

import "strings"

// virtualEmailDomain is the synthetic, non-deliverable domain issued to
// accounts created through the WeChat social-login flow. Mail to these
// addresses always bounces, so they are excluded up front.
const virtualEmailDomain = "wechat.app"

// Registrant is the read-only view of one event registration the resolver
// works from: the registered user and the address on file at resolve time.
type Registrant struct {
	UserID  string
	Address string
}

// Recipient is one eligible delivery target with its snapshotted address.
type Recipient struct {
	UserID  string
	Address string
}

// Resolution is the outcome of recipient resolution for one event and
// channel. The four counters populate the campaign's immutable snapshot;
// Total always equals len(Eligible) + ExcludedVirtual + ExcludedMissing.
type Resolution struct {
	Eligible        []Recipient
	Total           int
	ExcludedVirtual int
	ExcludedMissing int
}

func (r Resolution) ExcludedCount() int {
	return r.ExcludedVirtual + r.ExcludedMissing
}

// ResolveRecipients computes the eligible-recipient set for a channel from
// the full registration list. For EMAIL it drops registrants without an
// address and registrants on the reserved virtual domain; unverified
// addresses are kept on purpose.
func ResolveRecipients(channel Channel, registrants []Registrant) Resolution {
	res := Resolution{
		Eligible: make([]Recipient, 0, len(registrants)),
		Total:    len(registrants),
	}

	for _, reg := range registrants {
		address := strings.TrimSpace(reg.Address)
		if address == "" {
			res.ExcludedMissing++
			continue
		}
		if channel == ChannelEmail && isVirtualAddress(address) {
			res.ExcludedVirtual++
			continue
		}

		res.Eligible = append(res.Eligible, Recipient{
			UserID:  reg.UserID,
			Address: address,
		})
	}

	return res
}

func isVirtualAddress(address string) bool {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	return strings.EqualFold(address[at+1:], virtualEmailDomain)
}
