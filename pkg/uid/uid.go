package uid

import (
	"time"

	"github.com/sony/sonyflake"
)

// UID generates unique, time ordered numbers.
type UID interface {
	NextID() (uint64, error)
}

var _ UID = (*sonyflake.Sonyflake)(nil)

var startTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewSonyflake derives machine id from the private IP address.
// Host without private IP (i.e: laptop outside LAN) uses machine id 1.
func NewSonyflake() *sonyflake.Sonyflake {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: startTime,
	})

	if sf != nil {
		return sf
	}

	return sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: startTime,
		MachineID: func() (uint16, error) { return 1, nil },
	})
}
