package extract

import "strconv"

// selectionDebounceMillis is the quiet period the page-side listener waits
// before reporting a selection change.
const selectionDebounceMillis = 150

// contentScript gathers title, selection and cleaned body text in one pass.
// The content root cascade and the stripped elements mirror FromHTML so both
// paths produce the same text for the same page.
const contentScript = `(function() {
    var root = document.querySelector('article')
        || document.querySelector('main')
        || document.querySelector('[role=main]')
        || document.body;
    var clone = root.cloneNode(true);
    var noise = clone.querySelectorAll(
        'script, style, nav, footer, header, aside, ' +
        '.ad, .ads, .advertisement, .sidebar, [role=comment], .comments');
    noise.forEach(function(el) { el.remove(); });
    var text = (clone.innerText || clone.textContent || '')
        .replace(/\s+/g, ' ').trim();
    var selection = (window.getSelection ? window.getSelection().toString() : '').trim();
    return {
        title: document.title || '',
        selectedText: selection,
        pageContent: text
    };
})()`

// selectionScript reads only the current selection.
const selectionScript = `(function() {
    return (window.getSelection ? window.getSelection().toString() : '').trim();
})()`

// selectionListenerScript installs the debounced selection-change listener.
// The guard flag prevents double installation; the single-shot timer is
// rearmed on every change and only the final value of a burst is posted, and
// only when it differs from the last posted value.
var selectionListenerScript = `(function() {
    if (window.__orbitSelectionListenerInstalled) { return true; }
    window.__orbitSelectionListenerInstalled = true;
    var timer = null;
    var lastReported = null;
    document.addEventListener('selectionchange', function() {
        if (timer !== null) { clearTimeout(timer); }
        timer = setTimeout(function() {
            timer = null;
            var text = (window.getSelection ? window.getSelection().toString() : '').trim();
            if (text === lastReported) { return; }
            lastReported = text;
            if (window.webkit && window.webkit.messageHandlers &&
                window.webkit.messageHandlers.__CHANNEL__) {
                window.webkit.messageHandlers.__CHANNEL__.postMessage({ selectedText: text });
            }
        }, ` + strconv.Itoa(selectionDebounceMillis) + `);
    });
    return true;
})()`
