package export

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

// LoopMode controls what the player does after the last frame.
type LoopMode string

const (
	LoopForever LoopMode = "loop"
	LoopOnce    LoopMode = "once"
	LoopReflect LoopMode = "reflect"
)

// HTMLConfig configures the animation player page.
type HTMLConfig struct {
	Title       string
	Description string
	Theme       string // "dark" or "light"
	IntervalMS  int
	Loop        LoopMode
}

// DefaultConfig returns the player defaults.
func DefaultConfig() HTMLConfig {
	return HTMLConfig{
		Title:       "Chart Title",
		Description: "Bubble chart animation",
		Theme:       "light",
		IntervalMS:  150,
		Loop:        LoopForever,
	}
}

// HTMLBuilder builds the player page.
type HTMLBuilder struct {
	config HTMLConfig
	data   *PlayerData
}

// PlayerData is embedded in the page as JSON.
type PlayerData struct {
	Frames   []string `json:"frames"`
	Interval int      `json:"interval"`
	Mode     string   `json:"mode"`
}

// GenerateHTML writes a self-contained HTML player for PNG encoded frames.
func GenerateHTML(w io.Writer, frames [][]byte, config HTMLConfig) error {
	if len(frames) == 0 {
		return errors.New("no frames to export")
	}
	if config.IntervalMS <= 0 {
		config.IntervalMS = DefaultConfig().IntervalMS
	}
	switch config.Loop {
	case LoopForever, LoopOnce, LoopReflect:
	case "":
		config.Loop = LoopForever
	default:
		return fmt.Errorf("unknown loop mode %q", config.Loop)
	}

	builder := &HTMLBuilder{config: config}
	builder.data = builder.buildPlayerData(frames)

	if _, err := io.WriteString(w, builder.render()); err != nil {
		return fmt.Errorf("failed to write HTML: %w", err)
	}
	return nil
}

func (b *HTMLBuilder) buildPlayerData(frames [][]byte) *PlayerData {
	data := &PlayerData{
		Frames:   make([]string, len(frames)),
		Interval: b.config.IntervalMS,
		Mode:     string(b.config.Loop),
	}
	for i, f := range frames {
		data.Frames[i] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(f)
	}
	return data
}

func (b *HTMLBuilder) render() string {
	var sb strings.Builder

	sb.WriteString(b.renderHead())
	sb.WriteString(`<body><div class="container">`)
	sb.WriteString(b.renderHeader())
	sb.WriteString(b.renderPlayer())
	sb.WriteString(b.renderFooter())
	sb.WriteString(`</div>`)
	sb.WriteString(b.renderScripts())
	sb.WriteString(`</body></html>`)

	return sb.String()
}

func (b *HTMLBuilder) renderHead() string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>%s</style>
</head>`, html.EscapeString(b.config.Title), b.getThemeCSS())
}

func (b *HTMLBuilder) getThemeCSS() string {
	if b.config.Theme == "dark" {
		return darkThemeCSS
	}
	return lightThemeCSS
}

func (b *HTMLBuilder) renderHeader() string {
	return fmt.Sprintf(`
<header>
    <h1>%s</h1>
    <p>%s</p>
</header>`, html.EscapeString(b.config.Title), html.EscapeString(b.config.Description))
}

func (b *HTMLBuilder) renderPlayer() string {
	mode := func(m LoopMode, label string) string {
		checked := ""
		if b.config.Loop == m {
			checked = " checked"
		}
		return fmt.Sprintf(`<label><input type="radio" name="mode" value="%s"%s> %s</label>`, m, checked, label)
	}

	return fmt.Sprintf(`
<div class="player-box">
    <img id="frame" alt="animation frame" src="%s">
    <input id="slider" type="range" min="0" max="%d" value="0">
    <div class="controls">
        <button data-action="first" title="First frame">&#x23EE;</button>
        <button data-action="prev" title="Previous frame">&#x23F4;&#x23F4;</button>
        <button data-action="reverse" title="Play backwards">&#x25C0;</button>
        <button data-action="pause" title="Pause">&#x23F8;</button>
        <button data-action="play" title="Play">&#x25B6;</button>
        <button data-action="next" title="Next frame">&#x23F5;&#x23F5;</button>
        <button data-action="last" title="Last frame">&#x23ED;</button>
        <button data-action="slower" title="Slower">&minus;</button>
        <button data-action="faster" title="Faster">+</button>
    </div>
    <div class="modes">%s %s %s</div>
    <div class="status"><span id="counter">1 / %d</span></div>
</div>`,
		b.data.Frames[0], len(b.data.Frames)-1,
		mode(LoopOnce, "Once"), mode(LoopForever, "Loop"), mode(LoopReflect, "Reflect"),
		len(b.data.Frames))
}

func (b *HTMLBuilder) renderFooter() string {
	return `<footer><p>Generated by bubbleflow</p></footer>`
}

func (b *HTMLBuilder) renderScripts() string {
	dataJSON, _ := json.Marshal(b.data)

	return fmt.Sprintf(`
<script>
const data = %s;
%s
</script>`, string(dataJSON), playerScript)
}

const playerScript = `
(function() {
    const img = document.getElementById('frame');
    const slider = document.getElementById('slider');
    const counter = document.getElementById('counter');
    const n = data.frames.length;
    let current = 0;
    let direction = 0;
    let interval = data.interval;
    let timer = null;

    function show(i) {
        current = Math.max(0, Math.min(n - 1, i));
        img.src = data.frames[current];
        slider.value = current;
        counter.textContent = (current + 1) + ' / ' + n;
    }

    function mode() {
        const el = document.querySelector('input[name="mode"]:checked');
        return el ? el.value : data.mode;
    }

    function tick() {
        let next = current + direction;
        if (next >= n || next < 0) {
            switch (mode()) {
            case 'loop':
                next = direction > 0 ? 0 : n - 1;
                break;
            case 'reflect':
                direction = -direction;
                next = current + direction;
                break;
            default:
                stop();
                return;
            }
        }
        show(next);
    }

    function start(dir) {
        stop();
        direction = dir;
        timer = setInterval(tick, interval);
    }

    function stop() {
        if (timer !== null) {
            clearInterval(timer);
            timer = null;
        }
    }

    const actions = {
        first: () => { stop(); show(0); },
        last: () => { stop(); show(n - 1); },
        prev: () => { stop(); show(current - 1); },
        next: () => { stop(); show(current + 1); },
        play: () => start(1),
        reverse: () => start(-1),
        pause: () => stop(),
        faster: () => { interval = Math.max(10, Math.round(interval / 1.2)); if (timer) start(direction); },
        slower: () => { interval = Math.round(interval * 1.2); if (timer) start(direction); }
    };

    document.querySelectorAll('.controls button').forEach(btn => {
        btn.addEventListener('click', () => actions[btn.dataset.action]());
    });
    slider.addEventListener('input', () => { stop(); show(parseInt(slider.value, 10)); });

    show(0);
    start(1);
})();
`

// Theme CSS
const darkThemeCSS = `
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
    min-height: 100vh;
    color: #e4e4e4;
}
.container { max-width: 1300px; margin: 0 auto; padding: 20px; }
header { text-align: center; padding: 30px 0; border-bottom: 1px solid #333; margin-bottom: 30px; }
header h1 { font-size: 2.2rem; margin-bottom: 10px; }
header p { color: #888; font-size: 1.1rem; }
.player-box { background: rgba(255,255,255,0.05); border-radius: 12px; padding: 20px; border: 1px solid rgba(255,255,255,0.1); text-align: center; }
.player-box img { max-width: 100%; border-radius: 6px; background: #fff; }
#slider { width: 100%; margin: 15px 0; }
.controls { display: flex; justify-content: center; gap: 8px; flex-wrap: wrap; }
.controls button { background: rgba(255,255,255,0.1); color: #e4e4e4; border: 1px solid rgba(255,255,255,0.2); border-radius: 6px; padding: 6px 14px; font-size: 1rem; cursor: pointer; }
.controls button:hover { background: rgba(255,255,255,0.2); }
.modes { margin-top: 12px; display: flex; justify-content: center; gap: 20px; color: #aaa; }
.status { margin-top: 10px; color: #888; font-size: 0.9rem; }
footer { text-align: center; padding: 30px 0; color: #666; border-top: 1px solid #333; margin-top: 30px; }
`

const lightThemeCSS = `
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: linear-gradient(135deg, #f5f7fa 0%, #e4e8ec 100%);
    min-height: 100vh;
    color: #333;
}
.container { max-width: 1300px; margin: 0 auto; padding: 20px; }
header { text-align: center; padding: 30px 0; border-bottom: 1px solid #ddd; margin-bottom: 30px; }
header h1 { font-size: 2.2rem; margin-bottom: 10px; }
header p { color: #666; font-size: 1.1rem; }
.player-box { background: #fff; border-radius: 12px; padding: 20px; border: 1px solid #e0e0e0; box-shadow: 0 2px 8px rgba(0,0,0,0.05); text-align: center; }
.player-box img { max-width: 100%; border-radius: 6px; }
#slider { width: 100%; margin: 15px 0; }
.controls { display: flex; justify-content: center; gap: 8px; flex-wrap: wrap; }
.controls button { background: #f9f9f9; color: #333; border: 1px solid #ddd; border-radius: 6px; padding: 6px 14px; font-size: 1rem; cursor: pointer; }
.controls button:hover { background: #eee; }
.modes { margin-top: 12px; display: flex; justify-content: center; gap: 20px; color: #666; }
.status { margin-top: 10px; color: #999; font-size: 0.9rem; }
footer { text-align: center; padding: 30px 0; color: #999; border-top: 1px solid #ddd; margin-top: 30px; }
`
