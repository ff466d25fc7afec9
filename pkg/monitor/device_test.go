package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

func TestNew(t *testing.T) {
	dev := New("/dev/ttyACM0", 115200, 100, zerolog.Nop())
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyACM0", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 100, dev.bufSize)
	assert.NotNil(t, dev.readings)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0, zerolog.Nop())
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_CloseWhenNotConnected(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0, zerolog.Nop())
	assert.NoError(t, dev.Close())
}

func TestReadLines(t *testing.T) {
	stream := strings.Join([]string{
		"ESP-ROM:esp32s3-20210327",
		"6\tMUX1_CH0\t12",
		"",
		"3\tMUX1_CH1\t4095\r",
		"17\tGPIO14\tERR",
		"17\tGPIO14\t5000",
		"18\tMUX2_CH8\t2048",
	}, "\n")

	dev := New("test", 0, 10, zerolog.Nop())
	dev.readLines(strings.NewReader(stream))

	var got []Reading
	for r := range dev.Readings() {
		got = append(got, r)
	}

	require.Len(t, got, 4)
	assert.Equal(t, wiring.LogicalInput(6), got[0].Input)
	assert.Equal(t, "MUX1_CH0", got[0].Label)
	assert.Equal(t, frontend.RawSample(12), got[0].Value)
	assert.Equal(t, frontend.RawSample(4095), got[1].Value)
	assert.True(t, got[2].Failed)
	assert.Equal(t, "MUX2_CH8", got[3].Label)
	assert.False(t, got[3].Timestamp.IsZero())
}

func TestReadLines_WiderResolution(t *testing.T) {
	dev := New("test", 0, 10, zerolog.Nop())
	dev.SetMaxSample(1<<16 - 1)
	dev.readLines(strings.NewReader("17\tGPIO14\t5000\n"))

	r, ok := <-dev.Readings()
	require.True(t, ok)
	assert.Equal(t, frontend.RawSample(5000), r.Value)
}

func TestReadLines_DropsWhenFull(t *testing.T) {
	dev := New("test", 0, 1, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		dev.readLines(strings.NewReader("1\tMUX1_CH6\t1\n1\tMUX1_CH7\t2\n"))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader blocked on a full channel")
	}

	var got []Reading
	for r := range dev.Readings() {
		got = append(got, r)
	}
	assert.Len(t, got, 1)
}
