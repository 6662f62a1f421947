package fingerprint

// In-page scripts for the observe and patch phases. Every script is a fixed
// function body; anything variable (vendor strings, sample offsets, identity
// overrides) crosses the control/browser boundary as a structured parameter
// object, never interpolated into the script text. Each script carries its
// own guard flag so reinstalling is a no-op.

// probeScript runs before any page script. It wraps the three fingerprint
// surfaces so the first invocation of each flips a usage flag and then
// delegates unchanged. Purely observational: output is never altered here.
// The params object also carries the pre-navigation identity overrides.
const probeScript = `(params) => {
  if (params.removeWebdriver) {
    try {
      Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
    } catch (e) {}
  }
  if (params.hardwareConcurrency > 0) {
    try {
      Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => params.hardwareConcurrency });
    } catch (e) {}
  }
  if (params.deviceMemory > 0) {
    try {
      Object.defineProperty(navigator, 'deviceMemory', { get: () => params.deviceMemory });
    } catch (e) {}
  }

  if (!params.detect) return;
  if (window.__sd_usage) return;
  window.__sd_usage = { webgl: false, canvas: false, audio: false };

  try {
    const g = WebGLRenderingContext.prototype.getParameter;
    WebGLRenderingContext.prototype.getParameter = function () {
      window.__sd_usage.webgl = true;
      return g.apply(this, arguments);
    };
  } catch (e) {}

  try {
    const t = HTMLCanvasElement.prototype.toDataURL;
    HTMLCanvasElement.prototype.toDataURL = function () {
      window.__sd_usage.canvas = true;
      return t.apply(this, arguments);
    };
  } catch (e) {}

  try {
    const a = AudioContext.prototype.getChannelData;
    AudioContext.prototype.getChannelData = function () {
      window.__sd_usage.audio = true;
      return a.apply(this, arguments);
    };
  } catch (e) {}
}`

// usageReadbackScript reads the flags the probes accumulated.
const usageReadbackScript = `() => window.__sd_usage || { webgl: false, canvas: false, audio: false }`

// webglPatchScript swaps the vendor and renderer parameter values
// (UNMASKED_VENDOR_WEBGL 37445, UNMASKED_RENDERER_WEBGL 37446) for the
// configured strings and delegates everything else.
const webglPatchScript = `(params) => {
  if (window.__sd_patched_webgl) return;
  window.__sd_patched_webgl = true;
  const g = WebGLRenderingContext.prototype.getParameter;
  WebGLRenderingContext.prototype.getParameter = function (p) {
    if (p === 37445) return params.vendor;
    if (p === 37446) return params.renderer;
    return g.call(this, p);
  };
}`

// canvasPatchScript applies a near-imperceptible alpha change to the 2d
// context before export, perturbing the exported pixels deterministically.
const canvasPatchScript = `(params) => {
  if (window.__sd_patched_canvas) return;
  window.__sd_patched_canvas = true;
  const t = HTMLCanvasElement.prototype.toDataURL;
  HTMLCanvasElement.prototype.toDataURL = function () {
    const c = this.getContext('2d');
    if (c) c.globalAlpha = params.alpha;
    return t.apply(this, arguments);
  };
}`

// audioPatchScript adds a tiny deterministic offset at regular sample
// intervals to audio buffer readback.
const audioPatchScript = `(params) => {
  if (window.__sd_patched_audio) return;
  window.__sd_patched_audio = true;
  const o = AudioContext.prototype.getChannelData;
  AudioContext.prototype.getChannelData = function () {
    const d = o.apply(this, arguments);
    for (let i = 0; i < d.length; i += params.interval) d[i] += params.offset;
    return d;
  };
}`
