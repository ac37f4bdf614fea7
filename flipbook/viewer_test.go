package flipbook

import (
	"context"
	"testing"

	"github.com/whereissushi/zpravodaj-api/scripting"
)

// newViewerEngine loads the shipped viewer script into a fresh engine.
// Outside a browser the script installs Flipbook.core without touching
// any document, which is exactly what these tests exercise.
func newViewerEngine(t *testing.T) *scripting.GojaEngine {
	t.Helper()
	eng := scripting.NewEngine()
	if _, err := eng.Execute(context.Background(), ViewerScript()); err != nil {
		t.Fatalf("load viewer script: %v", err)
	}
	return eng
}

// runViewerCheck executes a script that returns '' on success or a
// failure description.
func runViewerCheck(t *testing.T, eng *scripting.GojaEngine, script string) {
	t.Helper()
	out, err := eng.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("viewer check: %v", err)
	}
	if msg, _ := out.(string); msg != "" {
		t.Fatalf("viewer check failed: %s", msg)
	}
}

func TestViewerSpreads(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var groups = JSON.stringify(core.spreads(6, false));
		if (groups !== '[[1],[2,3],[4,5],[6]]') {
			return 'six pages: ' + groups;
		}
		groups = JSON.stringify(core.spreads(5, false));
		if (groups !== '[[1],[2,3],[4,5]]') {
			return 'five pages: ' + groups;
		}
		groups = JSON.stringify(core.spreads(1, false));
		if (groups !== '[[1]]') {
			return 'one page: ' + groups;
		}
		groups = JSON.stringify(core.spreads(4, true));
		if (groups !== '[[1],[2],[3],[4]]') {
			return 'single-page mode: ' + groups;
		}
		return '';
	})()`)
}

func TestViewerNavigation(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var state = core.createState(6);
		if (state.page !== 1) { return 'initial page ' + state.page; }

		var res = core.navigate(state, 'next');
		if (!res.moved || res.page !== 2) { return 'next from cover: ' + JSON.stringify(res); }
		state.page = res.page;

		res = core.navigate(state, 'next');
		if (res.page !== 4) { return 'next spread: ' + JSON.stringify(res); }

		res = core.navigate(state, 'last');
		if (res.page !== 6) { return 'last: ' + JSON.stringify(res); }

		res = core.navigate(state, 'prev');
		if (res.page !== 1) { return 'prev to cover: ' + JSON.stringify(res); }

		res = core.navigate(state, 'goto', 5);
		if (!res.moved || res.page !== 5) { return 'goto: ' + JSON.stringify(res); }

		res = core.navigate(state, 'goto', 0);
		if (res.moved) { return 'goto 0 moved'; }
		res = core.navigate(state, 'goto', 99);
		if (res.moved) { return 'goto past end moved'; }

		state.page = 1;
		res = core.navigate(state, 'prev');
		if (res.moved) { return 'prev from cover moved'; }
		return '';
	})()`)
}

func TestViewerNavigationLockedWhileZoomedOrAnimating(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var state = core.createState(6);

		state.zoom.level = 2;
		if (core.canNavigate(state)) { return 'navigable while zoomed'; }
		var res = core.navigate(state, 'next');
		if (res.moved) { return 'moved while zoomed'; }

		state.zoom.level = 1;
		state.animating = true;
		if (core.canNavigate(state)) { return 'navigable while animating'; }
		res = core.navigate(state, 'last');
		if (res.moved) { return 'moved while animating'; }

		state.animating = false;
		res = core.navigate(state, 'next');
		if (!res.moved) { return 'navigation stayed locked'; }
		return '';
	})()`)
}

func TestViewerZoomClamp(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var cases = [
			[0.1, 0.5], [0.5, 0.5], [1, 1], [1.3, 1.25],
			[1.37, 1.25], [2.9, 3], [3.7, 3], [NaN, 1]
		];
		for (var i = 0; i < cases.length; i++) {
			var got = core.clampZoom(cases[i][0]);
			if (Math.abs(got - cases[i][1]) > 1e-9) {
				return 'clampZoom(' + cases[i][0] + ') = ' + got + ', want ' + cases[i][1];
			}
		}
		return '';
	})()`)
}

func TestViewerZoomOrigin(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var o = core.zoomOrigin(200, 100, 800, 400);
		if (o.x !== 25 || o.y !== 25) { return 'origin ' + JSON.stringify(o); }
		o = core.zoomOrigin(800, 400, 800, 400);
		if (o.x !== 100 || o.y !== 100) { return 'corner origin ' + JSON.stringify(o); }
		o = core.zoomOrigin(1, 1, 0, 0);
		if (o.x !== 50 || o.y !== 50) { return 'degenerate origin ' + JSON.stringify(o); }
		return '';
	})()`)
}

func TestViewerSpacerMetrics(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var m = core.spacerMetrics(600, 800, 2);
		if (m.scaledW !== 1200 || m.scaledH !== 1600) { return 'scaled ' + JSON.stringify(m); }
		if (m.padX !== 2400 || m.padY !== 3200) { return 'pad ' + JSON.stringify(m); }
		if (m.spacerW !== 6000 || m.spacerH !== 8000) { return 'spacer ' + JSON.stringify(m); }

		m = core.spacerMetrics(600, 800, 1);
		if (m.padX !== 0 || m.padY !== 0 || m.spacerW !== 600 || m.spacerH !== 800) {
			return 'unzoomed spacer ' + JSON.stringify(m);
		}
		return '';
	})()`)
}

// The click-to-zoom contract: the content point under the cursor must
// stay at the same viewport pixel after the zoom, within one pixel.
// The expected visual position is computed here the way CSS resolves a
// scale transform with a percentage origin, independently of the
// shipped scroll math.
func TestViewerZoomKeepsClickedPointStill(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var W = 600, H = 849;
		var click = { x: 420, y: 310 };

		var m0 = core.spacerMetrics(W, H, 1);
		var zoom0 = { level: 1, originX: 50, originY: 50 };
		var cp = core.contentPointFromViewport(click.x, click.y, 0, 0, m0, zoom0, W, H);

		var levels = [1.5, 2, 3];
		for (var i = 0; i < levels.length; i++) {
			var L = levels[i];
			var origin = core.zoomOrigin(cp.x, cp.y, W, H);
			var zoom = { level: L, originX: origin.x, originY: origin.y };
			var m = core.spacerMetrics(W, H, L);
			var target = core.zoomScrollTarget(cp, click, zoom, m, W, H);

			var originPxX = (origin.x / 100) * W;
			var originPxY = (origin.y / 100) * H;
			var cssX = m.padX + originPxX + (cp.x - originPxX) * L;
			var cssY = m.padY + originPxY + (cp.y - originPxY) * L;

			var dx = Math.abs((cssX - target.left) - click.x);
			var dy = Math.abs((cssY - target.top) - click.y);
			if (dx > 1 || dy > 1) {
				return 'level ' + L + ': drifted by ' + dx + ',' + dy;
			}
		}
		return '';
	})()`)
}

// Changing the zoom level repeatedly must keep targeting the same
// content point even when the previous state was already zoomed with
// an off-center origin.
func TestViewerZoomRetargetsFromZoomedState(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var W = 600, H = 849;
		var click = { x: 150, y: 500 };

		var zoomA = { level: 2, originX: 70, originY: 20 };
		var mA = core.spacerMetrics(W, H, 2);
		var scroll = { left: 900, top: 1400 };
		var cp = core.contentPointFromViewport(click.x, click.y, scroll.left, scroll.top, mA, zoomA, W, H);

		var origin = core.zoomOrigin(cp.x, cp.y, W, H);
		var zoomB = { level: 3, originX: origin.x, originY: origin.y };
		var mB = core.spacerMetrics(W, H, 3);
		var target = core.zoomScrollTarget(cp, click, zoomB, mB, W, H);

		var originPxX = (origin.x / 100) * W;
		var originPxY = (origin.y / 100) * H;
		var cssX = mB.padX + originPxX + (cp.x - originPxX) * 3;
		var cssY = mB.padY + originPxY + (cp.y - originPxY) * 3;
		if (Math.abs((cssX - target.left) - click.x) > 1 || Math.abs((cssY - target.top) - click.y) > 1) {
			return 'retarget drifted';
		}
		return '';
	})()`)
}

func TestViewerSearch(t *testing.T) {
	eng := newViewerEngine(t)
	if err := eng.Set("__data", map[string]interface{}{
		"pages": map[string]interface{}{
			"1": "Zpravodaj obce, červen 2025",
			"2": "Vítejte v Obci. Letní slavnosti začínají v sobotu na návsi.",
			"3": "",
		},
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	runViewerCheck(t, eng, `(function () {
		var core = Flipbook.core;

		var out = core.search(__data, 'obci');
		if (out.tooShort) { return 'query rejected'; }
		if (out.results.length !== 1 || out.results[0].page !== 2) {
			return 'obci: ' + JSON.stringify(out.results);
		}
		if (out.results[0].match !== 'Obci') { return 'match kept original case: ' + out.results[0].match; }

		var upper = core.search(__data, 'OBCI');
		if (upper.results.length !== 1 || upper.results[0].page !== 2) {
			return 'case-insensitive search failed';
		}

		var multi = core.search(__data, 'obc');
		if (multi.results.length !== 2 || multi.results[0].page !== 1 || multi.results[1].page !== 2) {
			return 'results not ordered by page: ' + JSON.stringify(multi.results);
		}

		var none = core.search(__data, 'neexistuje');
		if (none.tooShort || none.results.length !== 0) { return 'phantom results'; }

		var short1 = core.search(__data, 'o');
		if (!short1.tooShort) { return 'one-char query searched'; }
		var blank = core.search(__data, '   ');
		if (!blank.tooShort) { return 'blank query searched'; }
		return '';
	})()`)
}

func TestViewerSnippet(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var filler = new Array(30).join('slovo ');
		var text = filler + 'HLEDANE' + ' ' + filler;
		var at = text.indexOf('HLEDANE');
		var s = core.snippetAround(text, at, 'HLEDANE'.length);
		if (s.match !== 'HLEDANE') { return 'match ' + s.match; }
		if (!s.leading || !s.trailing) { return 'mid-text snippet lost its ellipsis flags'; }
		if (s.before.length !== 50 || s.after.length !== 50) {
			return 'snippet radius ' + s.before.length + '/' + s.after.length;
		}

		s = core.snippetAround('Vítejte v obci', 0, 7);
		if (s.leading) { return 'leading ellipsis at text start'; }
		if (s.trailing) { return 'trailing ellipsis covering whole text'; }
		if (s.match !== 'Vítejte' || s.after !== ' v obci') {
			return 'short snippet ' + JSON.stringify(s);
		}
		return '';
	})()`)
}

func TestViewerMatchBoxes(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var boxes = [
			{ word: 'Vítejte', x: 10, y: 20, w: 40, h: 12 },
			{ word: 'v', x: 54, y: 20, w: 6, h: 12 },
			{ word: 'obci', x: 64, y: 20, w: 28, h: 12 },
			{ word: 'Obecní', x: 10, y: 40, w: 44, h: 12 }
		];

		var hits = core.matchBoxes(boxes, 'ob');
		if (hits.length !== 2 || hits[0].word !== 'obci' || hits[1].word !== 'Obecní') {
			return 'prefix match: ' + JSON.stringify(hits);
		}

		hits = core.matchBoxes(boxes, 'OBCI');
		if (hits.length !== 1 || hits[0].word !== 'obci') {
			return 'case-insensitive match: ' + JSON.stringify(hits);
		}

		// A one-letter query may light up one-letter words.
		hits = core.matchBoxes(boxes, 'v');
		if (hits.length !== 2 || hits[0].word !== 'Vítejte' || hits[1].word !== 'v') {
			return 'single-char query: ' + JSON.stringify(hits);
		}

		// Substring-but-not-prefix must not highlight.
		hits = core.matchBoxes(boxes, 'bci');
		if (hits.length !== 0) { return 'substring highlighted: ' + JSON.stringify(hits); }

		if (core.matchBoxes(boxes, '').length !== 0) { return 'empty query highlighted'; }
		return '';
	})()`)
}

func TestViewerRescaleBox(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var box = { word: 'obci', x: 100, y: 200, w: 50, h: 20 };

		var half = core.rescaleBox(box, 1240, 1754, 620, 877);
		if (half.x !== 50 || half.y !== 100 || half.w !== 25 || half.h !== 10) {
			return 'half scale: ' + JSON.stringify(half);
		}

		var same = core.rescaleBox(box, 1240, 1754, 1240, 1754);
		if (same.x !== 100 || same.y !== 200 || same.w !== 50 || same.h !== 20) {
			return 'identity scale: ' + JSON.stringify(same);
		}

		// Scaling down and back up must land on the original box.
		var down = core.rescaleBox(box, 1240, 1754, 413, 584);
		var back = core.rescaleBox(down, 413, 584, 1240, 1754);
		if (Math.abs(back.x - box.x) > 1e-6 || Math.abs(back.w - box.w) > 1e-6) {
			return 'round trip drifted: ' + JSON.stringify(back);
		}

		var degenerate = core.rescaleBox(box, 0, 0, 620, 877);
		if (degenerate.w !== 0 || degenerate.h !== 0) {
			return 'degenerate source: ' + JSON.stringify(degenerate);
		}
		return '';
	})()`)
}

func TestViewerHighlightRects(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var position = {
			width: 1000,
			height: 1500,
			boxes: [
				{ word: 'obci', x: 100, y: 300, w: 80, h: 30 },
				{ word: 'jinde', x: 500, y: 300, w: 90, h: 30 }
			]
		};
		var rects = core.highlightRects(position, 'ob', 500, 750);
		if (rects.length !== 1) { return 'rects: ' + JSON.stringify(rects); }
		if (rects[0].x !== 50 || rects[0].y !== 150 || rects[0].w !== 40 || rects[0].h !== 15) {
			return 'rescaled rect: ' + JSON.stringify(rects[0]);
		}
		if (core.highlightRects(null, 'ob', 500, 750).length !== 0) {
			return 'missing position produced rects';
		}
		return '';
	})()`)
}

func TestViewerComputeLayout(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;

		var wide = core.computeLayout(1400, 900, 6);
		if (wide.singlePage) { return 'wide viewport forced single page'; }
		var aspect = wide.pageHeight / wide.pageWidth;
		if (Math.abs(aspect - Math.SQRT2) > 0.01) { return 'aspect ' + aspect; }
		if (wide.contentWidth !== wide.pageWidth * 2) { return 'spread width mismatch'; }
		if (wide.pageHeight > 900 || wide.contentWidth > 1400) { return 'layout overflows stage'; }

		var narrow = core.computeLayout(480, 800, 6);
		if (!narrow.singlePage) { return 'narrow viewport kept spreads'; }
		if (narrow.contentWidth !== narrow.pageWidth) { return 'single page width mismatch'; }
		if (narrow.contentWidth > 480 || narrow.pageHeight > 800) { return 'narrow layout overflows'; }

		// A short, wide stage must clamp by width and keep the aspect.
		var squat = core.computeLayout(700, 2000, 6);
		if (squat.contentWidth > 700 * 0.94 + 1) { return 'squat layout overflows width'; }
		var squatAspect = squat.pageHeight / squat.pageWidth;
		if (Math.abs(squatAspect - Math.SQRT2) > 0.01) { return 'squat aspect ' + squatAspect; }

		var solo = core.computeLayout(1400, 900, 1);
		if (!solo.singlePage) { return 'one-page document shown as spread'; }
		return '';
	})()`)
}

func TestViewerStateDefaults(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var state = core.createState(12);
		if (state.page !== 1 || state.pageCount !== 12) { return 'page defaults'; }
		if (state.zoom.level !== 1 || state.zoom.originX !== 50 || state.zoom.originY !== 50) {
			return 'zoom defaults: ' + JSON.stringify(state.zoom);
		}
		if (state.tool !== core.TOOL.NONE) { return 'tool default ' + state.tool; }
		if (state.highlightQuery !== null) { return 'highlight default'; }
		if (!state.soundOn) { return 'sound defaults off'; }
		if (core.MIN_ZOOM !== 0.5 || core.MAX_ZOOM !== 3 || core.ZOOM_STEP !== 0.25) {
			return 'zoom bounds';
		}
		if (core.TURN_DURATION !== 700 || core.SWIPE_THRESHOLD !== 50) {
			return 'interaction constants';
		}
		return '';
	})()`)
}

func TestViewerVisiblePages(t *testing.T) {
	runViewerCheck(t, newViewerEngine(t), `(function () {
		var core = Flipbook.core;
		var state = core.createState(6);
		if (JSON.stringify(core.visiblePages(state)) !== '[1]') { return 'cover'; }
		state.page = 3;
		if (JSON.stringify(core.visiblePages(state)) !== '[2,3]') { return 'spread for page 3'; }
		state.singlePage = true;
		if (JSON.stringify(core.visiblePages(state)) !== '[3]') { return 'single-page view'; }
		return '';
	})()`)
}
