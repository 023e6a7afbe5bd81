package yandexgpt

import "fmt"

const systemPrompt = "Ты - аналитик диспетчерской службы ЖКХ. Отвечай строго одним JSON-объектом без пояснений и без markdown."

// analysisPromptTemplate asks the model for one JSON object with the exact
// keys the parser expects. Field names here and in the analysis package must
// stay in sync.
const analysisPromptTemplate = `Проанализируй расшифровку звонка в аварийно-диспетчерскую службу ЖКХ.

Верни ровно один JSON-объект со следующими полями:
{
  "summary": "краткая суть обращения, 1-2 предложения",
  "sentiment": "тональность звонящего: Позитив / Нейтрально / Негатив / Взволнованно / Требовательно",
  "address": "полный адрес, названный жителем, или 'Не указан'",
  "dialog_type": "тип обращения: авария / заявка / консультация / жалоба / прочее",
  "is_relevant_hard": true или false - является ли звонок содержательным обращением жителя (не тишина, не ошибка номера, не спам),
  "resident_phrase": "ключевая фраза жителя, описывающая проблему",
  "accident_duration": "как долго длится проблема со слов жителя, или пустая строка",
  "stats_categories": {
    "refusal_deadline": true если оператор отказался назвать срок устранения,
    "no_brigade": true если бригада не была направлена на аварию,
    "long_duration": true если проблема длится больше суток,
    "redirect_other_org": true если жителя перенаправили в другую организацию
  },
  "location": {"street": "улица", "house": "номер дома"},
  "markers": [{"marker_type": "тип нарушения оператора", "operator_phrase": "цитата оператора"}],
  "cleaned_dialogue": "диалог, разбитый по ролям 'Диспетчер:' и 'Житель:', с исправленной пунктуацией"
}

Если нарушений оператора нет, верни "markers": [].
Не добавляй никакого текста вне JSON-объекта.

Расшифровка звонка:
%s`

func buildAnalysisPrompt(transcript string) string {
	return fmt.Sprintf(analysisPromptTemplate, transcript)
}
