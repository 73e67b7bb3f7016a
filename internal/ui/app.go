package ui

import (
	"fmt"
	"image"
	"os"
	"time"

	"facecam/internal/app"
	"facecam/internal/config"
	"facecam/internal/ui/cwidget"
	"facecam/internal/ui/view"
	"facecam/processing/capture"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Status is polled for the status bar.
type Status struct {
	Connected   bool
	ModelsReady bool
}

type Deps struct {
	Config     *config.Config
	ConfigPath string
	Store      *app.Store
	Camera     *capture.Manager
	Status     func() Status
	Log        *logrus.Entry
}

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config     *config.Config
	configPath string
	store      *app.Store
	camera     *capture.Manager
	status     func() Status
	log        *logrus.Entry

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	videoCanvas    *canvas.Image
	snapshotCanvas *canvas.Image
	cameraButton   *widget.Button
	fileLabel      *widget.Label
	cardsBox       *fyne.Container
	busy           *widget.ProgressBarInfinite
	fpsLabel       *widget.Label
	statusLabel    *widget.Label

	// Touched on the fyne thread only.
	errDialog     dialog.Dialog
	errShown      string
	annotatedFrom image.Image

	stopChan chan struct{}
}

func CreateApp(deps Deps) *DetectApp {
	a := fyneapp.NewWithID("io.facecam.app")
	w := a.NewWindow(view.Title)

	w.Resize(fyne.NewSize(1280, 720))

	status := deps.Status
	if status == nil {
		status = func() Status { return Status{} }
	}

	return &DetectApp{
		fyneApp:    a,
		mainWin:    w,
		config:     deps.Config,
		configPath: deps.ConfigPath,
		store:      deps.Store,
		camera:     deps.Camera,
		status:     status,
		log:        deps.Log,
		stopChan:   make(chan struct{}),
	}
}

func (a *DetectApp) Run() {
	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(480, 360))

	a.snapshotCanvas = canvas.NewImageFromImage(nil)
	a.snapshotCanvas.FillMode = canvas.ImageFillContain
	a.snapshotCanvas.SetMinSize(fyne.NewSize(480, 360))

	a.fpsLabel = widget.NewLabel(a.formatFPS(0))
	a.statusLabel = widget.NewLabel(a.formatStatus(a.status()))

	a.busy = widget.NewProgressBarInfinite()
	a.busy.Hide()

	a.cardsBox = container.NewVBox()
	a.fileLabel = widget.NewLabel(view.NoFileText)

	a.cameraButton = widget.NewButtonWithIcon(view.ButtonStartCamera, theme.MediaVideoIcon(), func() {
		a.store.Dispatch(app.CameraToggled{})
	})

	buttons := container.NewHBox(
		widget.NewButtonWithIcon(view.ButtonDetectFeed, theme.SearchIcon(), func() {
			a.store.Dispatch(app.DetectFeedRequested{})
		}),
		a.cameraButton,
		widget.NewButtonWithIcon(view.ButtonUpload, theme.UploadIcon(), func() {
			a.store.Dispatch(app.UploadRequested{})
		}),
		widget.NewButtonWithIcon(view.ButtonChooseFile, theme.FolderOpenIcon(), a.chooseFile),
		a.fileLabel,
	)

	videoContainer := container.NewGridWithColumns(2,
		container.NewBorder(widget.NewLabel("Live feed"), nil, nil, nil, a.videoCanvas),
		container.NewBorder(widget.NewLabel("Analysed frame"), nil, nil, nil, a.snapshotCanvas),
	)

	results := container.NewBorder(
		widget.NewLabelWithStyle("Detections", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		nil, nil, nil,
		container.NewVScroll(a.cardsBox),
	)

	content := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle(view.Title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
			buttons,
			a.busy,
		),
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.statusLabel),
		nil, nil,
		container.NewVSplit(videoContainer, results),
	)

	split := container.NewHSplit(
		container.NewPadded(a.buildSidebar()),
		container.NewPadded(content),
	)
	split.SetOffset(0.22)

	a.mainWin.SetContent(split)

	a.store.Subscribe(func(s app.State) {
		fyne.Do(func() {
			a.render(s)
		})
	})
	a.render(a.store.State())

	go a.runPlayerLoop()
	go a.runStatLoop()

	a.mainWin.SetCloseIntercept(func() {
		if err := a.config.Save(a.configPath); err != nil {
			a.log.WithError(err).Warn("config not saved")
		}
		close(a.stopChan)
		a.camera.Close()
		a.mainWin.Close()
	})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// render projects the state onto the widgets. Runs on the fyne thread.
func (a *DetectApp) render(s app.State) {
	m := view.Render(s)

	a.cameraButton.SetText(m.CameraButton)
	a.fileLabel.SetText(m.SelectedFile)

	if m.Detecting {
		a.busy.Show()
		a.busy.Start()
	} else {
		a.busy.Stop()
		a.busy.Hide()
	}

	if !s.CameraActive && a.videoCanvas.Image != nil {
		a.videoCanvas.Image = nil
		a.videoCanvas.Refresh()
	}

	objects := make([]fyne.CanvasObject, 0, len(m.Cards))
	for i, c := range m.Cards {
		objects = append(objects, cwidget.NewDetectionCard(i, c))
	}
	a.cardsBox.Objects = objects
	a.cardsBox.Refresh()

	if s.Frame != a.annotatedFrom {
		a.annotatedFrom = s.Frame
		if s.Frame == nil {
			a.snapshotCanvas.Image = nil
		} else {
			a.snapshotCanvas.Image = view.Annotate(s.Frame, s.Detections)
		}
		a.snapshotCanvas.Refresh()
	}

	a.renderModal(m.Modal)
}

func (a *DetectApp) renderModal(m view.Modal) {
	if !m.Visible {
		if d := a.errDialog; d != nil {
			a.errDialog = nil
			d.Hide()
		}
		return
	}

	if a.errDialog != nil && a.errShown == m.Message {
		return
	}

	if old := a.errDialog; old != nil {
		a.errDialog = nil
		old.Hide()
	}

	d := dialog.NewCustom(m.Title, view.ButtonCloseModal, widget.NewLabel(m.Message), a.mainWin)
	d.SetOnClosed(func() {
		// Hidden by a later render rather than by the user.
		if a.errDialog != d {
			return
		}
		a.errDialog = nil
		a.store.Dispatch(app.ModalClosed{})
	})

	a.errDialog = d
	a.errShown = m.Message
	d.Show()
}

func (a *DetectApp) chooseFile() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.log.WithError(err).Warn("file dialog failed")
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		_ = reader.Close()

		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}

		a.store.Dispatch(app.FileSelected{Path: path, Size: size})
	}, a.mainWin)

	fd.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	fd.Show()
}

func (a *DetectApp) runStatLoop() {
	uiTicker := time.NewTicker(time.Millisecond * 200)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			fps := a.camera.FPS()
			status := a.status()
			fyne.Do(func() {
				a.fpsLabel.SetText(a.formatFPS(fps))
				a.statusLabel.SetText(a.formatStatus(status))
			})
		case <-a.stopChan:
			return
		}
	}
}

func (a *DetectApp) formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func (a *DetectApp) formatStatus(s Status) string {
	conn := "disconnected"
	if s.Connected {
		conn = "connected"
	}
	models := "not loaded"
	if s.ModelsReady {
		models = "loaded"
	}
	return fmt.Sprintf("Detector: %s | Models: %s", conn, models)
}

func (a *DetectApp) runPlayerLoop() {
	frameChan := a.camera.Preview()

	fps := a.config.GetFPS()
	if fps == 0 {
		fps = 24
	}
	displayTicker := time.NewTicker(time.Second / time.Duration(fps))
	defer displayTicker.Stop()

	var lastFrame image.Image

	for {
		select {
		case frame := <-frameChan:
			if frame != nil {
				lastFrame = frame
			}

		case <-displayTicker.C:
			if lastFrame == nil || !a.camera.Active() {
				continue
			}
			frame := lastFrame
			lastFrame = nil
			fyne.Do(func() {
				a.videoCanvas.Image = frame
				a.videoCanvas.Refresh()
			})

		case <-a.stopChan:
			return
		}
	}
}
