package actuator

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gimbalworks/servolink/internal/units"
)

// Feetech default raw positions corresponding to 0 and 180 degrees on an
// STS-series bus servo (4096 ticks per revolution, horn centred at 2048).
const (
	DefaultRawMin = 1024
	DefaultRawMax = 3072
)

// FeetechConfig describes the bus connection and the single servo to drive.
type FeetechConfig struct {
	Port     string
	BaudRate int
	ServoID  int

	// RawMin and RawMax are the raw positions for 0 and 180 degrees. Zero
	// values select the defaults above.
	RawMin int
	RawMax int
}

// Feetech drives one servo on a feetech serial bus.
type Feetech struct {
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	id     int
	rawMin int
	rawMax int
}

// NewFeetech opens the bus and prepares the servo for position commands.
func NewFeetech(ctx context.Context, cfg FeetechConfig) (*Feetech, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.ServoID == 0 {
		cfg.ServoID = 1
	}
	if cfg.RawMin == 0 && cfg.RawMax == 0 {
		cfg.RawMin = DefaultRawMin
		cfg.RawMax = DefaultRawMax
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	group := feetech.NewServoGroupByIDs(bus, cfg.ServoID)
	if err := group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable torque: %w", err)
	}

	return &Feetech{
		bus:    bus,
		group:  group,
		id:     cfg.ServoID,
		rawMin: cfg.RawMin,
		rawMax: cfg.RawMax,
	}, nil
}

// MoveTo commands the servo to the given angle in degrees.
func (f *Feetech) MoveTo(angle int) error {
	raw := units.RawTicks(angle, f.rawMin, f.rawMax)
	positions := feetech.PositionMap{f.id: raw}
	if err := f.group.SetPositions(context.Background(), positions); err != nil {
		return fmt.Errorf("set position %d (raw %d): %w", angle, raw, err)
	}
	return nil
}

// Position reads the servo's current position back as degrees.
func (f *Feetech) Position(ctx context.Context) (int, error) {
	raw, err := f.group.Positions(ctx)
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	ticks, ok := raw[f.id]
	if !ok {
		return 0, fmt.Errorf("servo %d missing from position response", f.id)
	}
	return units.AngleFromRawTicks(ticks, f.rawMin, f.rawMax), nil
}

// Close disables torque and releases the bus.
func (f *Feetech) Close() error {
	if err := f.group.DisableAll(context.Background()); err != nil {
		f.bus.Close()
		return fmt.Errorf("disable torque: %w", err)
	}
	return f.bus.Close()
}
