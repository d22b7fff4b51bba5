package formscan

import (
	"encoding/json"
	"fmt"
)

// The probe and fill scripts below are the single source of truth for
// "what kind of form is showing" and for the filling contract. They use
// structural attributes only; button text is consulted as a tie-breaker
// when no submit-typed control exists. Keep them in sync with the tests
// before changing selectors.

// jsStr encodes a Go string as a JavaScript string literal.
func jsStr(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// sharedHelpers is prepended to every script. isIdentifier and
// isOneTimeCode implement the field-detection contract; setValue writes
// through the platform's internal value setter and dispatches input,
// change and key-up events so framework-managed inputs observe the
// change.
const sharedHelpers = `
  const OTP_NAMES = ['totp', 'code', 'otp', 'verification_code', 'two_factor_code'];

  const isIdentifier = (el) => {
    if (el.type === 'email') return true;
    const auto = (el.getAttribute('autocomplete') || '').toLowerCase();
    if (auto === 'email' || auto === 'username') return true;
    if (el.type !== 'text' && el.type !== '' && el.type !== 'input') return false;
    const hint = ((el.name || '') + ' ' + (el.placeholder || '')).toLowerCase();
    return hint.indexOf('email') !== -1 || hint.indexOf('user') !== -1;
  };

  const isOneTimeCode = (el) => {
    if (el.type === 'password' || el.type === 'hidden') return false;
    const name = (el.name || '').toLowerCase();
    if (OTP_NAMES.indexOf(name) !== -1) return true;
    const auto = (el.getAttribute('autocomplete') || '').toLowerCase();
    if (auto === 'one-time-code') return true;
    const mode = (el.getAttribute('inputmode') || '').toLowerCase();
    const pattern = el.getAttribute('pattern') || '';
    const numeric = el.type === 'tel' || el.type === 'number' ||
      mode === 'numeric' || pattern.indexOf('0-9') !== -1 || pattern.indexOf('\\d') !== -1;
    return el.maxLength === 6 && numeric && !isIdentifier(el);
  };

  const setValue = (el, value) => {
    const win = el.ownerDocument.defaultView || window;
    const desc = Object.getOwnPropertyDescriptor(win.HTMLInputElement.prototype, 'value');
    if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
    el.dispatchEvent(new win.Event('input', { bubbles: true }));
    el.dispatchEvent(new win.Event('change', { bubbles: true }));
    el.dispatchEvent(new win.KeyboardEvent('keyup', { bubbles: true }));
  };

  const findSubmit = (doc, anchor, keywords) => {
    const form = anchor.form;
    if (form) {
      const typed = form.querySelector('button[type="submit"], input[type="submit"]');
      if (typed) return typed;
    }
    const candidates = doc.querySelectorAll('button, input[type="submit"], input[type="button"]');
    for (const el of candidates) {
      const text = ((el.textContent || '') + ' ' + (el.value || '')).trim().toLowerCase();
      for (const keyword of keywords) {
        if (text.indexOf(keyword) !== -1) return el;
      }
    }
    return null;
  };
`

// buildProbeScript returns the classification probe evaluated in the top
// document. authHostSubstr identifies subframes that belong to the auth
// flow when their documents cannot be inspected.
func buildProbeScript(authHostSubstr string) string {
	return fmt.Sprintf(`(() => {
  const AUTH_HOST = %s;
%s
  const scan = (doc) => {
    if (doc.querySelector('input[type="password"]')) return 'password';
    for (const el of doc.querySelectorAll('input')) {
      if (isOneTimeCode(el)) return '2fa';
    }
    return 'none';
  };

  const top = scan(document);
  if (top === 'password') return 'main';
  if (top === '2fa') return '2fa';

  let crossOrigin = false;
  for (const frame of document.querySelectorAll('iframe')) {
    let doc = null;
    try { doc = frame.contentDocument; } catch (e) { doc = null; }
    if (doc) {
      if (scan(doc) === 'password') return 'iframe:same-origin';
    } else if ((frame.src || '').indexOf(AUTH_HOST) !== -1) {
      crossOrigin = true;
    }
  }
  if (crossOrigin) return 'iframe:cross-origin';
  return 'none';
})();`, jsStr(authHostSubstr), sharedHelpers)
}

// fill target selection: the credential fill script either works on the
// top document or walks into the first accessible subframe holding a
// password input. Cross-origin frames get the frame-local variant, which
// is evaluated inside the frame itself.
const docTop = `document`
const docSameOriginFrame = `(() => {
    for (const frame of document.querySelectorAll('iframe')) {
      try {
        const d = frame.contentDocument;
        if (d && d.querySelector('input[type="password"]')) return d;
      } catch (e) {}
    }
    return null;
  })()`

// buildCredentialFillScript fills the identifier (when present) and
// password fields and clicks the submit control. Returns 'ok',
// 'no-form', 'no-password' or 'no-submit'.
func buildCredentialFillScript(docExpr, identifier, secret string) string {
	return fmt.Sprintf(`(() => {
  const IDENTIFIER = %s;
  const SECRET = %s;
%s
  const doc = %s;
  if (!doc) return 'no-form';

  const inputs = Array.from(doc.querySelectorAll('input'));
  const password = inputs.find((el) => el.type === 'password');
  if (!password) return 'no-password';

  const identifier = inputs.find((el) => el !== password && isIdentifier(el));
  if (identifier && IDENTIFIER) setValue(identifier, IDENTIFIER);
  setValue(password, SECRET);

  const submit = findSubmit(doc, password, ['sign in', 'log in', 'login', 'continue']);
  if (!submit) return 'no-submit';
  submit.click();
  return 'ok';
})();`, jsStr(identifier), jsStr(secret), sharedHelpers, docExpr)
}

// buildOTPFillScript fills the one-time-code input and clicks the
// verification control. Returns 'ok', 'no-form', 'no-otp' or 'no-submit'.
func buildOTPFillScript(docExpr, code string) string {
	return fmt.Sprintf(`(() => {
  const CODE = %s;
%s
  const doc = %s;
  if (!doc) return 'no-form';

  const inputs = Array.from(doc.querySelectorAll('input'));
  const otp = inputs.find(isOneTimeCode);
  if (!otp) return 'no-otp';
  setValue(otp, CODE);

  const submit = findSubmit(doc, otp, ['verify', 'confirm', 'submit', 'continue']);
  if (!submit) return 'no-submit';
  submit.click();
  return 'ok';
})();`, jsStr(code), sharedHelpers, docExpr)
}
