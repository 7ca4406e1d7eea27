package recipientsvc

import (
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
)

func recordFromRepo(r recipientrepo.Record) Record {
	attrs := make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v
	}

	return Record{
		ID:         r.ID,
		Attributes: attrs,
		Sent:       r.Sent,
	}
}

func recordsFromRepo(in []recipientrepo.Record) []Record {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		out = append(out, recordFromRepo(r))
	}

	return out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
