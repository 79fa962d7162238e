package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"
)

const (
	// MaxConsecutiveWriteErrors stops the output pump.
	MaxConsecutiveWriteErrors = 10

	defaultSampleRate = 44100
	defaultPumpFPS    = 30
)

// BeepOptions configures a BeepBackend.
type BeepOptions struct {
	SampleRate int
	Volume     float64 // master (0.0 to 1.0)

	// Sink receives interleaved s16le stereo PCM once resumed. When nil,
	// samples are only produced by Read.
	Sink io.Writer
	FPS  int // sink write cadence

	Logger zerolog.Logger
}

type discardSink struct{ io.Writer }

func (discardSink) Close() error { return nil }

// OpenSink opens the PCM sink at path. An empty path discards the mix, so
// the pump still runs and finished voices still leave the mixer.
func OpenSink(path string) (io.WriteCloser, error) {
	if path == "" {
		return discardSink{io.Discard}, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// BeepBackend mixes decoded clips in memory. Clips are decoded once into
// buffers; every play is a window over its buffer, so concurrent voices
// share the same samples.
type BeepBackend struct {
	mu      sync.Mutex
	opts    BeepOptions
	format  beep.Format
	clips   map[Clip]*beep.Buffer
	mixer   *beep.Mixer
	master  *effects.Volume
	voices  map[Voice]*voice
	next    Voice
	resumed bool
	work    [][2]float64

	stopChan      chan struct{}
	wg            sync.WaitGroup
	running       atomic.Bool
	framesWritten atomic.Uint64
	writeErrors   atomic.Uint64

	log zerolog.Logger
}

// NewBeepBackend creates a backend with no clips loaded.
func NewBeepBackend(opts BeepOptions) *BeepBackend {
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultPumpFPS
	}
	mixer := &beep.Mixer{}
	b := &BeepBackend{
		opts: opts,
		format: beep.Format{
			SampleRate:  beep.SampleRate(opts.SampleRate),
			NumChannels: 2,
			Precision:   2,
		},
		clips:  make(map[Clip]*beep.Buffer),
		mixer:  mixer,
		master: &effects.Volume{Streamer: mixer, Base: 2},
		voices: make(map[Voice]*voice),
		work:   make([][2]float64, opts.SampleRate/opts.FPS),
		log:    opts.Logger,
	}
	setGain(b.master, opts.Volume)
	return b
}

// LoadDir loads every known clip found in dir as <name>.wav or <name>.ogg.
// Missing clips are skipped with a warning; the dispatcher treats them as
// failed plays.
func (b *BeepBackend) LoadDir(dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("clip dir: %w", err)
	}
	loaded := 0
	for _, clip := range Clips {
		path := ""
		for _, ext := range []string{".wav", ".ogg"} {
			candidate := filepath.Join(dir, string(clip)+ext)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			b.log.Warn().Str("clip", string(clip)).Msg("⚠️ clip missing")
			continue
		}
		if err := b.LoadClip(clip, path); err != nil {
			b.log.Warn().Err(err).Str("clip", string(clip)).Msg("⚠️ clip failed to decode")
			continue
		}
		loaded++
	}
	return loaded, nil
}

// LoadClip decodes one file into a buffer at the output sample rate.
func (b *BeepBackend) LoadClip(clip Clip, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		return fmt.Errorf("%s: unsupported clip format", path)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(b.format)
	if format.SampleRate != b.format.SampleRate {
		buf.Append(beep.Resample(4, format.SampleRate, b.format.SampleRate, streamer))
	} else {
		buf.Append(streamer)
	}
	if buf.Len() == 0 {
		return fmt.Errorf("%s: empty clip", path)
	}

	b.mu.Lock()
	b.clips[clip] = buf
	b.mu.Unlock()

	b.log.Debug().
		Str("clip", string(clip)).
		Int("rate", int(format.SampleRate)).
		Int("samples", buf.Len()).
		Msg("clip loaded")
	return nil
}

// Resume unlocks playback and starts the sink pump when a sink is set.
func (b *BeepBackend) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.resumed {
		b.mu.Unlock()
		return nil
	}
	b.resumed = true
	b.mu.Unlock()

	if b.opts.Sink != nil {
		b.startPump()
	}
	b.log.Info().Int("rate", b.opts.SampleRate).Msg("✅ audio output resumed")
	return nil
}

// Play mixes one window of a clip at volume.
func (b *BeepBackend) Play(ctx context.Context, clip Clip, w Window, volume float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.resumed {
		return ErrLocked
	}
	buf, ok := b.clips[clip]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClip, clip)
	}
	from, to := b.span(buf, w)
	vol := &effects.Volume{Streamer: buf.Streamer(from, to), Base: 2}
	setGain(vol, volume)
	b.mixer.Add(vol)
	return nil
}

// StartLoop repeats one window of a clip until StopLoop.
func (b *BeepBackend) StartLoop(ctx context.Context, clip Clip, w Window, volume float64) (Voice, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.resumed {
		return 0, ErrLocked
	}
	buf, ok := b.clips[clip]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownClip, clip)
	}
	from, to := b.span(buf, w)

	b.next++
	v := &voice{
		id:  b.next,
		vol: &effects.Volume{Streamer: beep.Loop(-1, buf.Streamer(from, to)), Base: 2},
	}
	setGain(v.vol, volume)
	b.voices[v.id] = v
	b.mixer.Add(v)
	return v.id, nil
}

// SetVolume changes a loop's level.
func (b *BeepBackend) SetVolume(id Voice, volume float64) {
	b.mu.Lock()
	if v, ok := b.voices[id]; ok {
		setGain(v.vol, volume)
	}
	b.mu.Unlock()
}

// StopLoop fades a loop out over fade and removes it.
func (b *BeepBackend) StopLoop(id Voice, fade time.Duration) {
	b.mu.Lock()
	if v, ok := b.voices[id]; ok {
		v.stop(b.format.SampleRate.N(fade))
		delete(b.voices, id)
	}
	b.mu.Unlock()
}

// Read fills buf with interleaved s16 stereo samples from the mix.
func (b *BeepBackend) Read(buf []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := len(buf) / 2
	done := 0
	for done < total {
		n := total - done
		if n > len(b.work) {
			n = len(b.work)
		}
		chunk := b.work[:n]
		b.master.Stream(chunk)
		for i := range chunk {
			buf[(done+i)*2] = floatToInt16(chunk[i][0])
			buf[(done+i)*2+1] = floatToInt16(chunk[i][1])
		}
		done += n
	}
	return total * 2
}

// Voices is the number of streams currently in the mix.
func (b *BeepBackend) Voices() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mixer.Len()
}

// Loaded reports whether clip has been decoded.
func (b *BeepBackend) Loaded(clip Clip) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clips[clip]
	return ok
}

// FramesWritten is the number of frames delivered to the sink.
func (b *BeepBackend) FramesWritten() uint64 { return b.framesWritten.Load() }

// Close stops the sink pump and drops every voice.
func (b *BeepBackend) Close() error {
	if b.running.Load() {
		close(b.stopChan)
		b.wg.Wait()
	}
	b.mu.Lock()
	b.mixer.Clear()
	clear(b.voices)
	b.resumed = false
	b.mu.Unlock()
	return nil
}

func (b *BeepBackend) startPump() {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	b.stopChan = make(chan struct{})
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()
		defer b.running.Store(false)

		interval := time.Second / time.Duration(b.opts.FPS)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		samples := make([]int16, (b.opts.SampleRate/b.opts.FPS)*2)
		out := make([]byte, len(samples)*2)
		consecutive := 0

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.Read(samples)
				for i, s := range samples {
					binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
				}
				if _, err := b.opts.Sink.Write(out); err != nil {
					b.writeErrors.Add(1)
					consecutive++
					if consecutive >= MaxConsecutiveWriteErrors {
						b.log.Error().Err(err).Msg("❌ audio sink lost, stopping output")
						return
					}
					continue
				}
				consecutive = 0
				b.framesWritten.Add(1)
			}
		}
	}()
}

// span converts a window in seconds to a sample range within buf.
func (b *BeepBackend) span(buf *beep.Buffer, w Window) (int, int) {
	total := buf.Len()
	sr := b.format.SampleRate
	dur := float64(total) / float64(sr)

	start := clampf(w.Start, 0, math.Max(0, dur-0.01))
	length := dur - start
	if w.Duration > 0 {
		length = clampf(w.Duration, 0.03, math.Max(0.03, dur-start))
	}

	from := sr.N(seconds(start))
	to := from + sr.N(seconds(length))
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}
	return from, to
}

// voice is a loop in the mix that can fade itself out.
type voice struct {
	id       Voice
	vol      *effects.Volume
	stopping bool
	fadeLen  int
	fadeLeft int
	done     bool
}

func (v *voice) stop(fadeSamples int) {
	v.stopping = true
	v.fadeLen = fadeSamples
	v.fadeLeft = fadeSamples
	if fadeSamples <= 0 {
		v.done = true
	}
}

func (v *voice) Stream(samples [][2]float64) (int, bool) {
	if v.done {
		return 0, false
	}
	n, ok := v.vol.Stream(samples)
	if v.stopping {
		for i := 0; i < n; i++ {
			if v.fadeLeft <= 0 {
				v.done = true
				return i, i > 0
			}
			g := float64(v.fadeLeft) / float64(v.fadeLen)
			samples[i][0] *= g
			samples[i][1] *= g
			v.fadeLeft--
		}
	}
	if !ok {
		v.done = true
	}
	return n, ok
}

func (v *voice) Err() error { return nil }

// setGain maps a linear volume onto effects.Volume's exponential scale.
func setGain(v *effects.Volume, linear float64) {
	if linear <= 0 || math.IsNaN(linear) {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(linear, 1))
}

// floatToInt16 converts a [-1, 1] sample with soft clipping above ±30000.
func floatToInt16(sample float64) int16 {
	scaled := sample * 32767.0

	if scaled > 30000 {
		scaled = 30000 + (scaled-30000)/4
	} else if scaled < -30000 {
		scaled = -30000 + (scaled+30000)/4
	}

	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
