package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"facecam/internal/config"
	"facecam/internal/ui/cwidget"
	"facecam/processing/capture"
)

const (
	loadingCameras  = "Loading cameras..."
	noCamerasFound  = "No cameras found"
	camerasNotFound = "Error listing cameras"
)

func (a *DetectApp) buildSidebar() fyne.CanvasObject {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	})

	sourceTypeSelect.SetSelected(string(a.config.GetSource()))

	a.setupConfigSettings()

	return container.NewVBox(
		widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		widget.NewLabel("Feed Source:"),
		sourceTypeSelect,
		widget.NewSeparator(),
		a.dynamicSettings,
		a.staticSettings,
	)
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	fpsInput := cwidget.NewIntInput("FPS", "Enter integer", int(a.config.GetFPS()), 1, func(i int) {
		a.config.SetFPS(uint(i))
	})

	widthInput := cwidget.NewIntInput("Width", "Enter integer", a.config.GetWidth(), 16, func(i int) {
		a.config.SetWidth(i)
	})

	heightInput := cwidget.NewIntInput("Height", "Enter integer", a.config.GetHeight(), 16, func(i int) {
		a.config.SetHeight(i)
	})

	applyCfg := widget.NewButtonWithIcon("Save config", theme.DocumentSaveIcon(), a.applySettings)

	a.staticSettings.Add(fpsInput)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(applyCfg)
}

// applySettings persists the config and restarts a running feed so the new
// capture settings take effect.
func (a *DetectApp) applySettings() {
	if err := a.config.Validate(); err != nil {
		dialog.ShowError(err, a.mainWin)
		return
	}

	if err := a.config.Save(a.configPath); err != nil {
		a.log.WithError(err).Warn("config not saved")
		dialog.ShowError(err, a.mainWin)
		return
	}

	if a.camera.Active() {
		go a.restartFeed()
	}
}

func (a *DetectApp) restartFeed() {
	if err := a.camera.SetActive(false); err != nil {
		a.log.WithError(err).Warn("camera stop failed")
	}
	if err := a.camera.SetActive(true); err != nil {
		a.log.WithError(err).Warn("camera restart failed")
	}
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.GetLocalPath())

		pathEntry.OnChanged = func(s string) {
			a.config.SetLocalPath(s)
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					pathEntry.SetText(reader.URI().Path())
					_ = reader.Close()
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{loadingCameras}, func(s string) {
			if s != loadingCameras && s != noCamerasFound && s != camerasNotFound {
				a.config.SetDeviceID(s)
			}
		})
		deviceSelect.SetSelected(loadingCameras)
		deviceSelect.Disable()

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)

		go func() {
			devices, err := capture.ListCameras()

			fyne.Do(func() {
				switch {
				case err != nil:
					a.log.WithError(err).Warn("listing cameras failed")
					deviceSelect.Options = []string{camerasNotFound}
				case len(devices) == 0:
					deviceSelect.Options = []string{noCamerasFound}
				default:
					deviceSelect.Options = devices
					deviceSelect.Enable()

					if id := a.config.GetDeviceID(); id != "" {
						deviceSelect.SetSelected(id)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()
	}

	a.dynamicSettings.Refresh()
}
