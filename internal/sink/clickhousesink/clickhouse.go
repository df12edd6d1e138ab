// Package clickhousesink archives SSR corrections into ClickHouse for
// offline analysis, wiring the example pack's ClickHouse/clickhouse-go/v2
// native driver (batch inserts) and gorm.io/driver/clickhouse +
// gorm.io/gorm (schema migration) dependencies.
package clickhousesink

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	gormclickhouse "gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// ClockRow is the gorm model backing the clock_corrections table,
// migrated once at startup via gorm.io/driver/clickhouse.
type ClockRow struct {
	Time    time.Time `gorm:"column:ts"`
	Stream  string    `gorm:"column:stream"`
	Sat     string    `gorm:"column:sat"`
	DClk    float64   `gorm:"column:dclk"`
	DotDClk float64   `gorm:"column:dot_dclk"`
	Iod     int       `gorm:"column:iod"`
}

func (ClockRow) TableName() string { return "clock_corrections" }

// Sink batches clock/orbit corrections and writes them with the native
// ClickHouse driver, using gorm only to own the schema.
type Sink struct {
	db   *gorm.DB
	conn clickhouse.Conn
}

// New opens a gorm connection for migrations and a native
// clickhouse-go/v2 connection for batch inserts. The gorm connection
// uses dsn (e.g. "tcp://localhost:9000/bncgo"); the native connection
// uses addr and database.
func New(dsn string, addr []string, database string) (*Sink, error) {
	db, err := gorm.Open(gormclickhouse.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ClockRow{}); err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: addr,
		Auth: clickhouse.Auth{Database: database},
	})
	if err != nil {
		return nil, err
	}
	return &Sink{db: db, conn: conn}, nil
}

// WriteClockBatch appends one epoch's consensus clock corrections via a
// native ClickHouse batch insert (§4.H step 7's emitted consensus is the
// natural unit of archival).
func (s *Sink) WriteClockBatch(ctx context.Context, stream string, t time.Time, clocks map[prn.Prn]float64) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO clock_corrections (ts, stream, sat, dclk)")
	if err != nil {
		return err
	}
	for sat, dclk := range clocks {
		if err := batch.Append(t, stream, sat.String(), dclk); err != nil {
			return err
		}
	}
	return batch.Send()
}

// WriteOrbit persists one orbit correction row via gorm, used for the
// lower-volume orbit stream where a single-row ORM insert is adequate.
func (s *Sink) WriteOrbit(oc *ephemeris.OrbCorr, stream string) error {
	type orbitRow struct {
		Time   time.Time `gorm:"column:ts"`
		Stream string    `gorm:"column:stream"`
		Sat    string    `gorm:"column:sat"`
		Radial float64   `gorm:"column:radial"`
		Along  float64   `gorm:"column:along"`
		Cross  float64   `gorm:"column:cross"`
	}
	row := orbitRow{Time: toStdTime(oc.Time), Stream: stream, Sat: oc.Prn.String(), Radial: oc.Xr[0], Along: oc.Xr[1], Cross: oc.Xr[2]}
	return s.db.Table("orbit_corrections").Create(&row).Error
}

func toStdTime(t gtime.Time) time.Time {
	y, mo, d, h, mi, s := t.Calendar()
	sec := int(s)
	nsec := int((s - float64(sec)) * 1e9)
	return time.Date(y, time.Month(mo), d, h, mi, sec, nsec, time.UTC)
}

// Close releases both underlying connections.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err == nil {
		sqlDB.Close()
	}
	return s.conn.Close()
}
