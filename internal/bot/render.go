package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/format"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/quiz/ranking"
	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbSubject = "materia"
	cbTopic   = "topico"
	cbAnswer  = "r"
	cbRanking = "ranking"
	cbGrade   = "minota"
	cbResume  = "reanudar"
)

const barCells = 10

const msgWelcome = "👋 ¡Bienvenido a PhysicsBank!\n" +
	"📚 Usa /temas para elegir una temática.\n" +
	"📈 Usa /ranking para ver el ranking.\n" +
	"📝 Usa /minota para ver tus resultados.\n" +
	"⏸️ Usa /pausar para pausar el quiz actual y /reanudar para continuarlo.\n" +
	"🛑 Usa /terminar para abandonar el quiz actual.\n" +
	"📜 Usa /historial para ver tu actividad.\n" +
	"👥 Usa /activos para ver quiénes están resolviendo quizzes."

const (
	msgNoSubjects    = "⚠️ No hay materias disponibles."
	msgNoTopics      = "❌ No hay tópicos para esta materia."
	msgChooseSubject = "📚 Elige una materia:"
	msgNoGrades      = "📭 No hay notas registradas."
	msgNoRanking     = "📭 Aún no hay resultados para el ranking."
	msgNoActive      = "📭 No hay estudiantes activos."
	msgAdminOnly     = "🚫 Solo el profesor puede usar este comando."
	msgNoPaused      = "📭 No tienes quizzes pausados."
	msgChoosePaused  = "⏸️ Tienes varios quizzes pausados. Elige cuál reanudar:"
	msgNoHistory     = "📭 No hay historial registrado."
	msgStopped       = "🛑 Has terminado voluntariamente tu quiz. Puedes volver a intentarlo desde /temas cuando lo desees."
	msgCourseOn      = "✅ Curso activado. Los estudiantes ya pueden iniciar quizzes."
	msgCourseOff     = "⛔ Curso desactivado. No se podrán iniciar nuevos quizzes."
	msgUnknown       = "🤔 No entendí. Usa /start para ver los comandos."
	msgBadButton     = "⚠️ Este botón ya no es válido."
)

var rejectionText = map[session.Reason]string{
	session.ReasonCourseInactive:   "⛔ El curso está desactivado.",
	session.ReasonCapacity:         "🚫 Límite de usuarios activos alcanzado. Intenta más tarde.",
	session.ReasonAlreadyInSession: "⚠️ Ya estás presentando un quiz. Usa /pausar o /terminar antes de iniciar otro.",
	session.ReasonInvalidTopic:     "❌ Tópico inválido.",
	session.ReasonAlreadyFinished:  "✅ Ya terminaste este quiz. Revisa tu nota con /minota.",
	session.ReasonNotPaused:        "📭 No tienes ese quiz pausado.",
	session.ReasonNoSession:        "⚠️ No estás presentando ningún quiz actualmente.",
}

var bandText = map[ranking.Band]string{
	ranking.BandExcellent:        "🌟 Excelente",
	ranking.BandGood:             "👍 Bien",
	ranking.BandNeedsImprovement: "📈 Puedes mejorar",
}

// topicLabel renders "Física / Cinemática" from a topic key.
func topicLabel(key string) string {
	if s, t, ok := bank.SplitKey(key); ok {
		return s + " / " + t
	}
	return key
}

func subjectMenu(subjects []string) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(subjects))
	for _, s := range subjects {
		btns = append(btns, keyboard.InlineBtn{Text: s, Data: callbacks.Data(cbSubject, s)})
	}
	return keyboard.InlineButtons(btns)
}

func topicMenu(subject string, topics []string) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(topics))
	for _, t := range topics {
		btns = append(btns, keyboard.InlineBtn{Text: t, Data: callbacks.Data(cbTopic, subject, t)})
	}
	return keyboard.InlineButtons(btns)
}

// topicKeyMenu lists topic keys under the given callback key.
func topicKeyMenu(key string, topics []string, perRow int) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(topics))
	for _, k := range topics {
		btns = append(btns, keyboard.InlineBtn{Text: topicLabel(k), Data: callbacks.Data(key, k)})
	}
	return keyboard.InlineButtonsNPerRow(btns, perRow)
}

func chooseTopicText(subject string) string {
	return "📖 Elige un tópico de *" + format.MD(subject) + "*"
}

// countdownBar renders remaining/window as barCells cells, rounding up.
func countdownBar(remaining, window time.Duration) string {
	filled := 0
	if window > 0 && remaining > 0 {
		filled = int((remaining*barCells + window - 1) / window)
	}
	filled = min(filled, barCells)
	return strings.Repeat("▓", filled) + strings.Repeat("░", barCells-filled)
}

func questionHeader(p session.Prompt) string {
	return fmt.Sprintf("📘 Pregunta %d/%d · %s", p.Number(), p.Total, format.MD(p.Topic))
}

func questionText(p session.Prompt) string {
	secs := int((p.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%s\n⏳ %ds %s\n\n❓ %s",
		questionHeader(p), secs, countdownBar(p.Remaining, p.Window), format.MD(p.Text))
}

func questionMarkup(p session.Prompt) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(p.Options))
	for i, opt := range p.Options {
		btns = append(btns, keyboard.InlineBtn{
			Text: opt,
			Data: callbacks.Data(cbAnswer, strconv.Itoa(p.Index), strconv.Itoa(i)),
		})
	}
	return keyboard.InlineButtons(btns)
}

func option(opts []string, i int) string {
	if i < 0 || i >= len(opts) {
		return "?"
	}
	return opts[i]
}

func verdictText(p session.Prompt, v session.Verdict) string {
	var line string
	switch {
	case v.Right:
		line = "✅ ¡Correcto!"
	case v.Expired:
		line = "⌛ Tiempo agotado. La respuesta era: *" + format.MD(option(p.Options, v.Correct)) + "*"
	default:
		line = "❌ Incorrecto. Elegiste: " + format.MD(option(p.Options, v.Chosen)) +
			"\nLa respuesta era: *" + format.MD(option(p.Options, v.Correct)) + "*"
	}
	return fmt.Sprintf("%s\n\n❓ %s\n\n%s", questionHeader(p), format.MD(p.Text), line)
}

func resultText(r session.Result) string {
	return fmt.Sprintf("✅ Has terminado el quiz *%s*.\n🎯 Aciertos: %d/%d\n📊 Tu nota es: *%s*",
		format.MD(topicLabel(bank.TopicKey(r.Subject, r.Topic))), r.Correct, r.Total, r.Grade.StringFixed(2))
}

func rejectionMessage(r *session.Rejection) string {
	if text, ok := rejectionText[r.Reason]; ok {
		return text
	}
	return "⚠️ No se pudo completar la acción."
}

func startedText(topicKey string) string {
	return "🚀 Comienza el quiz *" + format.MD(topicLabel(topicKey)) + "*. ¡Éxitos!"
}

func pausedText(p session.Progress) string {
	return fmt.Sprintf("⏸️ Quiz *%s* pausado en la pregunta %d/%d. Usa /reanudar para continuar.",
		format.MD(topicLabel(p.Key())), p.Index+1, p.Total)
}

func resumedText(topicKey string) string {
	return "▶️ Reanudando *" + format.MD(topicLabel(topicKey)) + "*."
}

func gradesText(list []ranking.Personal) string {
	var b strings.Builder
	b.WriteString("📋 Tus notas:\n")
	for _, p := range list {
		fmt.Fprintf(&b, "📚 %s: %s\n", format.MD(topicLabel(p.Topic)), p.Grade.StringFixed(2))
	}
	b.WriteString("\nToca un tema para ver el detalle.")
	return b.String()
}

func gradeDetailText(p ranking.Personal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📚 *%s*\n", format.MD(topicLabel(p.Topic)))
	if p.Total > 0 {
		fmt.Fprintf(&b, "🎯 Aciertos: %d/%d\n", p.Correct, p.Total)
	}
	fmt.Fprintf(&b, "📊 Nota: *%s*\n%s", p.Grade.StringFixed(2), bandText[p.Band])
	return b.String()
}

func entryLine(e ranking.Entry) string {
	if e.Total > 0 {
		return fmt.Sprintf(" %d. %s - %d/%d (%s)\n", e.Rank, format.MD(e.Name), e.Correct, e.Total, e.Grade.StringFixed(2))
	}
	return fmt.Sprintf(" %d. %s - %s\n", e.Rank, format.MD(e.Name), e.Grade.StringFixed(2))
}

func overviewText(list []ranking.TopicRanking) string {
	var b strings.Builder
	b.WriteString("🏆 Ranking por tema:\n")
	for _, t := range list {
		fmt.Fprintf(&b, "\n📚 %s\n", format.MD(topicLabel(t.Topic)))
		for _, e := range t.Entries {
			b.WriteString(entryLine(e))
		}
	}
	return b.String()
}

func rankingText(topicKey string, entries []ranking.Entry) string {
	if len(entries) == 0 {
		return msgNoRanking
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Ranking de *%s*\n\n", format.MD(topicLabel(topicKey)))
	for _, e := range entries {
		b.WriteString(entryLine(e))
	}
	return b.String()
}

func rosterText(r ranking.Roster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Estudiantes activos: %d\n\n", r.Total)
	for _, t := range r.ByTopic {
		fmt.Fprintf(&b, "📚 %s: %d\n", format.MD(topicLabel(t.Topic)), t.Count)
	}
	b.WriteString("\n📝 Lista:\n")
	for _, u := range r.Users {
		fmt.Fprintf(&b, "- %s (%s) Pregunta %d/%d\n",
			format.MD(u.Name), format.MD(topicLabel(u.Key())), u.Index+1, u.Total)
	}
	return b.String()
}

func actionText(e records.Entry) string {
	topic := topicLabel(e.Topic)
	switch e.Action {
	case records.ActionStarted:
		return "Inició quiz: " + topic
	case records.ActionFinished:
		return fmt.Sprintf("Finalizó quiz: %s con %d/%d", topic, e.Correct, e.Total)
	case records.ActionPaused:
		return "Pausó quiz: " + topic
	case records.ActionResumed:
		return "Reanudó quiz: " + topic
	case records.ActionStopped:
		return "Terminó voluntariamente: " + topic
	}
	return e.Action
}

func historyText(entries []records.Entry, loc *time.Location) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("🕒 %s\n👤 %s\n📌 %s",
			e.At.In(loc).Format("02/01/2006 15:04:05"), format.MD(e.Name), format.MD(actionText(e))))
	}
	return "📜 Tu historial:\n\n" + strings.Join(parts, "\n\n")
}
