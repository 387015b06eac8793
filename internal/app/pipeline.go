package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/session"
)

// ErrFeedBusy is returned when a feed is started twice without a Stop.
var ErrFeedBusy = errors.New("feed already running")

// PipelineConfig configures a camera Pipeline.
type PipelineConfig struct {
	Camera      capture.Camera
	NewDetector detector.Factory
	Detector    detector.Config
	FPS         int
}

// Pipeline is a session.Feed that reads camera frames, runs hand detection on
// each one and delivers whether a hand was present.
type Pipeline struct {
	camera      capture.Camera
	newDetector detector.Factory
	detConfig   detector.Config
	fps         int

	mu       sync.Mutex
	detector detector.Detector
	stopCh   chan struct{}
	done     chan struct{}

	frameMu  sync.RWMutex
	latest   []byte
	frameSeq uint64
}

// NewPipeline creates a stopped pipeline.
func NewPipeline(config PipelineConfig) *Pipeline {
	fps := config.FPS
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	newDetector := config.NewDetector
	if newDetector == nil {
		newDetector = detector.NewMediaPipe
	}
	return &Pipeline{
		camera:      config.Camera,
		newDetector: newDetector,
		detConfig:   config.Detector,
		fps:         fps,
	}
}

// Start opens the camera, creates the detector and starts the frame loop.
func (p *Pipeline) Start(ctx context.Context, deliver func(handPresent bool)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopCh != nil {
		return fmt.Errorf("%w: %w", session.ErrCameraAccessDenied, ErrFeedBusy)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.camera.Open(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrCameraAccessDenied, err)
	}
	p.camera.SetFPS(p.fps)

	det, err := p.newDetector(p.detConfig)
	if err != nil {
		if cerr := p.camera.Close(); cerr != nil {
			log.Printf("Error closing camera: %v", cerr)
		}
		return fmt.Errorf("%w: %v", session.ErrDetectorInit, err)
	}

	p.detector = det
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stopCh, p.done, det, deliver)

	log.Println("Detection pipeline started")
	return nil
}

// Stop ends the frame loop and releases the camera and detector. It does not
// wait for the loop to exit.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopCh == nil {
		return nil
	}
	close(p.stopCh)
	p.stopCh = nil

	var errs []error
	if err := p.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		p.detector = nil
	}

	p.frameMu.Lock()
	p.latest = nil
	p.frameMu.Unlock()

	log.Println("Detection pipeline stopped")
	return errors.Join(errs...)
}

// Done returns a channel closed when the most recent frame loop exits.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether the pipeline holds the camera.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCh != nil
}

// LatestFrame returns the last frame read by the loop as JPEG and its
// sequence number. It returns nil while the pipeline is stopped.
func (p *Pipeline) LatestFrame() ([]byte, uint64) {
	p.frameMu.RLock()
	defer p.frameMu.RUnlock()
	return p.latest, p.frameSeq
}

// FPS returns the frame rate of the detection loop.
func (p *Pipeline) FPS() int {
	return p.fps
}

// keepFrame stores frame as the latest preview unless stop is closed.
func (p *Pipeline) keepFrame(stop <-chan struct{}, frame *gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		log.Printf("Error encoding preview frame: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	select {
	case <-stop:
		return
	default:
	}
	p.latest = data
	p.frameSeq++
}

func (p *Pipeline) run(stop <-chan struct{}, done chan<- struct{}, det detector.Detector, deliver func(bool)) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	minScore := p.detConfig.MinConfidence

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := p.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrCameraNotOpen) {
					return
				}
				log.Printf("Error reading frame: %v", err)
				continue
			}

			p.keepFrame(stop, frame)
			hands, err := det.Detect(frame)
			frame.Close()
			if err != nil {
				if errors.Is(err, detector.ErrClosed) {
					return
				}
				log.Printf("Error detecting hands: %v", err)
				continue
			}

			select {
			case <-stop:
				return
			default:
			}
			deliver(detector.HandPresent(hands, minScore))
		}
	}
}
